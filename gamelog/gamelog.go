// Package gamelog implements the append-only, size-capped buffer of
// human-readable game log lines, with cursor and per-player-turn access.
package gamelog

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// DefaultCap is the hard size cap applied absent an override (5 MiB).
const DefaultCap = 5 * 1024 * 1024

// Buffer is a rolling, newline-separated log with a hard byte cap. Trimming
// only ever happens at line boundaries, so TrimmedBytes() + Len() always
// equals the total number of bytes ever appended.
type Buffer struct {
	mu sync.Mutex

	cap int

	// data holds the retained tail of the log.
	data []byte

	// trimmedBytes is the count of bytes dropped from the front.
	trimmedBytes int64

	// turnMarker rewrites the engine's global "TURN k" lines into
	// per-player turn markers, keeping a running count per active player.
	turnMarker *turnMarkerRewriter
}

// New constructs an empty Buffer with the given cap (DefaultCap if <= 0).
func New(capBytes int) *Buffer {
	if capBytes <= 0 {
		capBytes = DefaultCap
	}
	return &Buffer{cap: capBytes, turnMarker: newTurnMarkerRewriter()}
}

// Append adds a line (without trailing newline) to the buffer, rewriting any
// global turn marker into a per-player one first, then trims from the front
// to the next newline boundary if the cap is exceeded.
func (b *Buffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	line = b.turnMarker.rewrite(line)

	b.data = append(b.data, []byte(line+"\n")...)
	b.trimToCapLocked()
}

func (b *Buffer) trimToCapLocked() {
	for len(b.data) > b.cap {
		idx := bytesIndexByte(b.data, '\n')
		if idx < 0 {
			// no newline boundary to trim to; give up rather than cut mid-line.
			return
		}
		dropped := idx + 1
		b.trimmedBytes += int64(dropped)
		b.data = b.data[dropped:]
	}
}

func bytesIndexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Len returns the number of bytes currently retained.
func (b *Buffer) Len() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.data))
}

// TrimmedBytes returns the count of bytes dropped from the front so far.
func (b *Buffer) TrimmedBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trimmedBytes
}

// ReadTail returns the final maxChars bytes of the buffer.
func (b *Buffer) ReadTail(maxChars int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if maxChars <= 0 || maxChars >= len(b.data) {
		return string(b.data)
	}
	return string(b.data[len(b.data)-maxChars:])
}

// SinceResult is the result of ReadSince.
type SinceResult struct {
	Data        string
	CursorReset bool
}

// ReadSince returns everything at or after the given absolute offset
// (measured from the start of the log, including trimmed bytes). If the
// cursor refers to an already-trimmed byte, it clamps to the oldest
// retained byte and sets CursorReset.
func (b *Buffer) ReadSince(cursor int64) SinceResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cursor < b.trimmedBytes {
		return SinceResult{Data: string(b.data), CursorReset: true}
	}
	offset := cursor - b.trimmedBytes
	if offset >= int64(len(b.data)) {
		return SinceResult{}
	}
	return SinceResult{Data: string(b.data[offset:])}
}

// Cursor returns the current absolute write offset (trimmedBytes + len),
// suitable as a starting point for a future ReadSince call.
func (b *Buffer) Cursor() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trimmedBytes + int64(len(b.data))
}

// SincePlayerTurnResult is the result of ReadSincePlayerTurn.
type SincePlayerTurnResult struct {
	Data      string
	Truncated bool
}

// ReadSincePlayerTurn scans for the line "<player> turn <n>" at the start of
// a line. If found, returns everything from there. If the marker would have
// existed but was trimmed (i.e. the buffer has been trimmed and this player's
// highest seen turn count is already >= n), returns the whole buffer with
// Truncated=true. Otherwise (the Nth turn has not happened yet), returns
// empty.
func (b *Buffer) ReadSincePlayerTurn(player string, n int) SincePlayerTurnResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	marker := player + " turn " + strconv.Itoa(n)
	text := string(b.data)
	lines := strings.Split(text, "\n")
	offset := 0
	for _, line := range lines {
		if strings.HasPrefix(line, marker) {
			return SincePlayerTurnResult{Data: text[offset:]}
		}
		offset += len(line) + 1
	}

	// Not found: if we've trimmed anything and the highest turn count we've
	// seen for this player is >= n, the marker existed and was trimmed away.
	if b.trimmedBytes > 0 && b.turnMarker.highestTurn(player) >= n {
		return SincePlayerTurnResult{Data: text, Truncated: true}
	}
	return SincePlayerTurnResult{}
}

// globalTurnRe matches the engine's global turn marker line, e.g.
// "TURN 14 (Alice) (Alice: 32, Bob: 18)". The life-total parenthetical, if
// present, is preserved verbatim.
var globalTurnRe = regexp.MustCompile(`^TURN\s+(\d+)\s*\(([^)]+)\)(.*)$`)

type turnMarkerRewriter struct {
	counts map[string]int
}

func newTurnMarkerRewriter() *turnMarkerRewriter {
	return &turnMarkerRewriter{counts: map[string]int{}}
}

// rewrite converts a global "TURN k (Player) (...)" line into
// "<Player> turn <per-player-count>(...)" using a local per-player counter,
// keeping any trailing life-total parenthetical intact. Non-matching lines
// pass through unchanged.
func (r *turnMarkerRewriter) rewrite(line string) string {
	m := globalTurnRe.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	player := m[2]
	rest := m[3]
	r.counts[player]++
	return player + " turn " + strconv.Itoa(r.counts[player]) + rest
}

func (r *turnMarkerRewriter) highestTurn(player string) int {
	return r.counts[player]
}
