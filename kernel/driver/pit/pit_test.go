package pit

import (
	"testing"

	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/sync"
)

func restoreMocks() {
	portWriteByteFn = cpu.PortWriteByte
	handleIRQWithFrameFn = irq.HandleIRQWithFrame
	enableIRQFn = irq.EnableIRQ
	criticalFn = sync.WithInterruptsDisabled
	tickHandler = nil
	ticks = 0
	frequency = 0
}

func TestInitProgramsTimer(t *testing.T) {
	defer restoreMocks()

	var writes []struct {
		port uint16
		val  uint8
	}
	portWriteByteFn = func(port uint16, val uint8) {
		writes = append(writes, struct {
			port uint16
			val  uint8
		}{port, val})
	}

	var registeredLine uint8 = 0xFF
	handleIRQWithFrameFn = func(line uint8, _ irq.IRQFrameHandler) {
		registeredLine = line
	}

	var unmaskedLine uint8 = 0xFF
	enableIRQFn = func(line uint8) {
		unmaskedLine = line
	}

	actual := Init(100)

	// 1193182 / 100 = 11931 -> actual frequency 1193182 / 11931 = 100Hz
	if exp := uint32(100); actual != exp {
		t.Fatalf("expected actual frequency %d; got %d", exp, actual)
	}
	if got := Frequency(); got != actual {
		t.Fatalf("expected Frequency() to report %d; got %d", actual, got)
	}

	divisor := uint32(11931)
	if len(writes) != 3 {
		t.Fatalf("expected 3 port writes; got %d", len(writes))
	}
	if writes[0].port != commandPort || writes[0].val != cmdSquareWave {
		t.Errorf("expected command byte 0x%x on port 0x%x; got 0x%x on 0x%x",
			cmdSquareWave, commandPort, writes[0].val, writes[0].port)
	}
	if writes[1].port != channel0DataPort || writes[1].val != uint8(divisor&0xFF) {
		t.Errorf("expected divisor low byte 0x%x; got 0x%x", uint8(divisor&0xFF), writes[1].val)
	}
	if writes[2].port != channel0DataPort || writes[2].val != uint8(divisor>>8) {
		t.Errorf("expected divisor high byte 0x%x; got 0x%x", uint8(divisor>>8), writes[2].val)
	}

	if registeredLine != timerLine {
		t.Errorf("expected the ISR to be registered on line %d; got %d", timerLine, registeredLine)
	}
	if unmaskedLine != timerLine {
		t.Errorf("expected line %d to be unmasked; got %d", timerLine, unmaskedLine)
	}
}

func TestInitDivisorClamping(t *testing.T) {
	defer restoreMocks()

	portWriteByteFn = func(uint16, uint8) {}
	handleIRQWithFrameFn = func(uint8, irq.IRQFrameHandler) {}
	enableIRQFn = func(uint8) {}

	specs := []struct {
		freqHz  uint32
		expFreq uint32
	}{
		// Requesting 0 clamps the divisor to 1.
		{0, baseFrequency},
		// Requesting more than the base frequency clamps the divisor to 1.
		{baseFrequency + 1, baseFrequency},
		// Requesting below 19Hz clamps the divisor to 65535.
		{18, baseFrequency / 65535},
		{100, 100},
	}

	for _, spec := range specs {
		if got := Init(spec.freqHz); got != spec.expFreq {
			t.Errorf("expected Init(%d) to program %dHz; got %d", spec.freqHz, spec.expFreq, got)
		}
	}
}

func TestTickISR(t *testing.T) {
	defer restoreMocks()

	criticalFn = func(fn func()) { fn() }

	var (
		handlerCalls int
		gotFrame     *irq.Frame
	)
	SetTickHandler(func(frame *irq.Frame) {
		handlerCalls++
		gotFrame = frame
	})

	frame := irq.Frame{IntNo: 32}
	before := Ticks()
	tickISR(&frame)
	tickISR(&frame)

	if got := Ticks(); got != before+2 {
		t.Fatalf("expected tick count %d; got %d", before+2, got)
	}
	if handlerCalls != 2 {
		t.Fatalf("expected the tick sink to be invoked once per tick; got %d", handlerCalls)
	}
	if gotFrame != &frame {
		t.Fatal("expected the tick sink to receive the interrupt frame")
	}
}

func TestTickISRWithoutHandler(t *testing.T) {
	defer restoreMocks()

	criticalFn = func(fn func()) { fn() }
	tickHandler = nil

	frame := irq.Frame{IntNo: 32}
	tickISR(&frame)

	if got := Ticks(); got != 1 {
		t.Fatalf("expected tick count 1; got %d", got)
	}
}
