package kpanic

import (
	"strings"
	"testing"

	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/kfmt"
)

type capturedSinks struct {
	text, serial kfmt.BufferWriter
	halted       int
	cliCalls     int
}

func captureOutputs(t *testing.T) *capturedSinks {
	t.Helper()

	caps := &capturedSinks{
		text:   kfmt.BufferWriter{Buf: make([]byte, 4096)},
		serial: kfmt.BufferWriter{Buf: make([]byte, 4096)},
	}

	SetOutputs(&caps.text, &caps.serial)
	disableInterruptsFn = func() { caps.cliCalls++ }
	haltFn = func() { caps.halted++ }

	t.Cleanup(func() {
		SetOutputs(nil, nil)
		disableInterruptsFn = cpu.DisableInterrupts
		haltFn = cpu.Halt
	})

	return caps
}

func (c *capturedSinks) serialOutput() string {
	return string(c.serial.Buf[:c.serial.Pos()])
}

func (c *capturedSinks) textOutput() string {
	return string(c.text.Buf[:c.text.Pos()])
}

func TestPanicOutput(t *testing.T) {
	caps := captureOutputs(t)

	Panic("kernel/kmain/kmain.go", 42, "Test panic - this is intentional (value: %d)", 42)

	exp := "\n\n" +
		bannerLine +
		bannerText +
		bannerLine +
		"Location: kernel/kmain/kmain.go:42\n" +
		"Message: Test panic - this is intentional (value: 42)\n" +
		"\nSystem halted. CPU in halt state.\n" +
		bannerLine

	if got := caps.serialOutput(); got != exp {
		t.Fatalf("unexpected serial output\nexpected:\n%q\ngot:\n%q", exp, got)
	}

	if caps.cliCalls != 1 {
		t.Fatalf("expected interrupts to be disabled once; got %d", caps.cliCalls)
	}
	if caps.halted != 1 {
		t.Fatalf("expected the CPU to be halted once; got %d", caps.halted)
	}

	text := caps.textOutput()
	if !strings.Contains(text, "!!! KERNEL PANIC !!!") {
		t.Fatalf("expected the text banner; got %q", text)
	}
	if !strings.Contains(text, "Location: kernel/kmain/kmain.go:42") {
		t.Fatalf("expected the location on the text sink; got %q", text)
	}
}

func TestPanicRegsDump(t *testing.T) {
	caps := captureOutputs(t)

	frame := irq.Frame{
		EAX: 0x11111111, EBX: 0x22222222, ECX: 0x33333333, EDX: 0x44444444,
		ESP: 0xcafe0000, EBP: 0x55555555, ESI: 0x66666666, EDI: 0x77777777,
		DS: 0x10, SS: 0x10,
		EIP: 0xdead0000, CS: 0x08, EFlags: 0x202,
		IntNo: 14, ErrCode: 0,
	}

	PanicRegs("kernel/mem/vmm/fault.go", 7, &frame,
		"Page Fault at 0x%08x - %s", uint32(0xdeadbeef), "Read from non-present page")

	serial := caps.serialOutput()

	for _, exp := range []string{
		"Message: Page Fault at 0xdeadbeef - Read from non-present page\n",
		"CPU Register Dump:\n",
		"EIP: 0xdead0000",
		"CS:  0x0008",
		"EFLAGS: 0x00000202",
		"EAX: 0x11111111",
		"ESP: 0xcafe0000",
		"DS:  0x0010",
		"INT: 14",
		"ERR: 0x00000000",
	} {
		if !strings.Contains(serial, exp) {
			t.Errorf("expected serial output to contain %q; full output:\n%s", exp, serial)
		}
	}

	text := caps.textOutput()
	if !strings.Contains(text, "EIP: 0xdead0000  ESP: 0xcafe0000") {
		t.Errorf("expected the short summary on the text sink; got %q", text)
	}
	if strings.Contains(text, "CPU Register Dump") {
		t.Errorf("expected the full dump to go to serial only")
	}
}

func TestPanicMessageVerbs(t *testing.T) {
	specs := []struct {
		descr  string
		format string
		args   []interface{}
		exp    string
	}{
		{"string", "got %s", []interface{}{"text"}, "Message: got text\n"},
		{"nil string", "got %s", []interface{}{nil}, "Message: got (null)\n"},
		{"signed", "%d", []interface{}{-7}, "Message: -7\n"},
		{"unsigned", "%u", []interface{}{uint32(7)}, "Message: 7\n"},
		{"hex with width", "%08x", []interface{}{uint32(0xbeef)}, "Message: 0000beef\n"},
		{"percent literal", "50%%", nil, "Message: 50%\n"},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			caps := captureOutputs(t)

			Panic("file.go", 1, spec.format, spec.args...)

			if got := caps.serialOutput(); !strings.Contains(got, spec.exp) {
				t.Fatalf("expected serial output to contain %q; got:\n%q", spec.exp, got)
			}
		})
	}
}

func TestUnhandledExceptionPanics(t *testing.T) {
	caps := captureOutputs(t)
	defer irq.SetUnhandledExceptionHandler(nil)

	InstallExceptionHandlers()

	frame := irq.Frame{IntNo: 0}
	irq.DispatchException(&frame)

	serial := caps.serialOutput()
	if !strings.Contains(serial, "Unhandled CPU Exception: Division By Zero (INT 0)") {
		t.Fatalf("expected the exception mnemonic in the panic message; got:\n%s", serial)
	}
	if caps.halted != 1 {
		t.Fatalf("expected the CPU to be halted; got %d halts", caps.halted)
	}
}
