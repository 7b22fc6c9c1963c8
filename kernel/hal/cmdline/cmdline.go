// Package cmdline provides access to the kernel command line supplied by the
// bootloader. The command line is a space-separated list of tokens; a token
// is either a bare flag ("earlycon") or a key=value pair ("loglevel=2").
package cmdline

import "unsafe"

// maxLen bounds the stored command line; anything longer is truncated.
const maxLen = 256

var (
	cmdLine      [maxLen]byte
	cmdLineLen   int
	cmdLineValid bool

	// valueBuffer backs the string returned by GetValue. Each call
	// overwrites the previous contents; callers that need the value past
	// the next lookup must copy it out.
	valueBuffer [maxLen]byte
)

// Init copies the supplied command line into the package's internal buffer.
// An empty string marks the command line as absent.
func Init(line string) {
	cmdLineLen = len(line)
	if cmdLineLen > maxLen {
		cmdLineLen = maxLen
	}
	copy(cmdLine[:], line[:cmdLineLen])
	cmdLineValid = cmdLineLen != 0
}

// HasFlag returns true if the command line contains the given token, either
// standalone or as the key of a key=value pair.
func HasFlag(flag string) bool {
	if !cmdLineValid {
		return false
	}

	line := cmdLine[:cmdLineLen]
	for pos := 0; pos < len(line); {
		pos = skipSpace(line, pos)
		if pos == len(line) {
			break
		}

		tokenStart := pos
		for pos < len(line) && line[pos] != ' ' && line[pos] != '\t' && line[pos] != '=' {
			pos++
		}

		if matches(line[tokenStart:pos], flag) {
			return true
		}

		pos = skipToken(line, pos)
	}

	return false
}

// GetValue looks up the value of a key=value argument and returns it, or an
// empty string if the key is absent. The returned string aliases a shared
// buffer that is overwritten by the next call to GetValue.
func GetValue(key string) string {
	if !cmdLineValid {
		return ""
	}

	line := cmdLine[:cmdLineLen]
	for pos := 0; pos < len(line); {
		pos = skipSpace(line, pos)
		if pos == len(line) {
			break
		}

		tokenStart := pos
		for pos < len(line) && line[pos] != ' ' && line[pos] != '\t' && line[pos] != '=' {
			pos++
		}

		if pos < len(line) && line[pos] == '=' && matches(line[tokenStart:pos], key) {
			valueStart := pos + 1
			valueEnd := valueStart
			for valueEnd < len(line) && line[valueEnd] != ' ' && line[valueEnd] != '\t' {
				valueEnd++
			}

			n := copy(valueBuffer[:], line[valueStart:valueEnd])
			if n == 0 {
				return ""
			}
			return unsafe.String(&valueBuffer[0], n)
		}

		pos = skipToken(line, pos)
	}

	return ""
}

func skipSpace(line []byte, pos int) int {
	for pos < len(line) && (line[pos] == ' ' || line[pos] == '\t') {
		pos++
	}
	return pos
}

func skipToken(line []byte, pos int) int {
	for pos < len(line) && line[pos] != ' ' && line[pos] != '\t' {
		pos++
	}
	return pos
}

func matches(token []byte, str string) bool {
	if len(token) != len(str) {
		return false
	}
	for i := 0; i < len(token); i++ {
		if token[i] != str[i] {
			return false
		}
	}
	return true
}
