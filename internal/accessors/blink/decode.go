package blink

import (
	"encoding/binary"
	"strings"
)

// Advertisement layout.
const (
	ManufacturerID = 0x02E0
	ServiceID      = 0x13
	PayloadLength  = 6

	headerLength = 3
)

// Advertisement is one decoded BLE advertisement record.
type Advertisement struct {
	Address          string
	Name             string
	ManufacturerData []byte
}

// Reading is the sensor state carried by one matching advertisement.
type Reading struct {
	CurrentMotion      uint8
	MotionSinceLastAdv uint8
	MotionLastMin      uint8
}

// Decode parses manufacturer data. ok is false for payloads from other
// manufacturers or services and for the wrong length.
func Decode(data []byte) (r Reading, ok bool) {
	if len(data) < headerLength {
		return Reading{}, false
	}
	if binary.LittleEndian.Uint16(data[0:2]) != ManufacturerID || data[2] != ServiceID {
		return Reading{}, false
	}
	if len(data) != PayloadLength {
		return Reading{}, false
	}
	return Reading{
		CurrentMotion:      data[3],
		MotionSinceLastAdv: data[4],
		MotionLastMin:      data[5],
	}, true
}

// Filter selects advertisements by address and name.
type Filter struct {
	addresses  map[string]bool
	namePrefix string
}

// NewFilter builds a filter. Addresses compare case-insensitively; an
// empty list accepts every address.
func NewFilter(addresses []string, namePrefix string) Filter {
	f := Filter{namePrefix: namePrefix}
	if len(addresses) > 0 {
		f.addresses = make(map[string]bool, len(addresses))
		for _, a := range addresses {
			f.addresses[strings.ToLower(a)] = true
		}
	}
	return f
}

// Match reports whether adv passes the address and name checks.
func (f Filter) Match(adv Advertisement) bool {
	if f.addresses != nil && !f.addresses[strings.ToLower(adv.Address)] {
		return false
	}
	return strings.HasPrefix(adv.Name, f.namePrefix)
}
