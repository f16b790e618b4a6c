package message

import (
	"strconv"

	"go.uber.org/atomic"
)

const (
	subBits = 16
	subMask = 1<<subBits - 1
)

// ID is the numeric schema identifier carried in every frame. The high 16 bits
// are the main (module) group and the low 16 bits are the sub (command) id.
type ID int32

// MakeID packs a main group and a sub command into an ID. Sub ids wider than
// 16 bits are truncated.
func MakeID(main, sub int32) ID {
	return ID(main<<subBits | sub&subMask)
}

// Main returns the main group of the id.
func (id ID) Main() int32 {
	return int32(id) >> subBits
}

// Sub returns the sub command of the id.
func (id ID) Sub() int32 {
	return int32(id) & subMask
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10) +
		"(" + strconv.FormatInt(int64(id.Main()), 10) +
		":" + strconv.FormatInt(int64(id.Sub()), 10) + ")"
}

//nolint:gochecknoglobals
var uniqueIDs = atomic.NewInt64(0)

// NextUniqueID returns the next value of the process-wide correlation id
// generator. Values increase monotonically and are never reused.
func NextUniqueID() int64 {
	return uniqueIDs.Inc()
}
