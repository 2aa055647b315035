package fastpkt

import (
	"errors"

	"github.com/zxhio/netdev/pkg/errcode"
	"golang.org/x/sys/unix"
)

// Header is one protocol layer of a frame.
//
// Parse reads the layer at data[off:] and keeps every remaining byte after
// the header as Payload, aliasing data. Build serializes the header, its
// options and Payload into a freshly allocated buffer, recomputing lengths
// and checksums.
type Header interface {
	Parse(data []byte, off int) error
	Build() ([]byte, error)
	HeaderLen() int
}

const (
	EtherTypeIPv4 uint16 = unix.ETH_P_IP
	EtherTypeARP  uint16 = unix.ETH_P_ARP
)

const (
	IPProtocolICMP uint8 = unix.IPPROTO_ICMP
	IPProtocolTCP  uint8 = unix.IPPROTO_TCP
	IPProtocolUDP  uint8 = unix.IPPROTO_UDP
)

var (
	ErrPacketTooShort            = errors.New("packet too short")
	ErrPacketInvalidEthernetType = errors.New("invalid ethernet type")
	ErrPacketInvalidProtocol     = errors.New("invalid protocol")
	ErrPacketInvalidHeader       = errors.New("invalid header")
)

func errTooShort(layer string, need, have int) error {
	return errcode.Wrap(errcode.CodeParse, ErrPacketTooShort, "%s: need %d bytes, have %d", layer, need, have)
}

func errInvalidHeader(layer, format string, a ...any) error {
	return errcode.Wrap(errcode.CodeParse, ErrPacketInvalidHeader, layer+": "+format, a...)
}

// checkOffset validates off and that at least need bytes follow it.
func checkOffset(layer string, data []byte, off, need int) error {
	if off < 0 || off > len(data) {
		return errcode.New(errcode.CodeParse, "%s: offset %d out of range [0, %d]", layer, off, len(data))
	}
	if len(data)-off < need {
		return errTooShort(layer, need, len(data)-off)
	}
	return nil
}

// padOptions zero-pads options to a 32-bit boundary.
func padOptions(layer string, options []byte) ([]byte, error) {
	n := len(options)
	if n%4 != 0 {
		n += 4 - n%4
	}
	if n > maxOptionsLen {
		return nil, errcode.New(errcode.CodeValidation, "%s: options length %d exceeds %d", layer, n, maxOptionsLen)
	}
	padded := make([]byte, n)
	copy(padded, options)
	return padded, nil
}

const maxOptionsLen = 40
