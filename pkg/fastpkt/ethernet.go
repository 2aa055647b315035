package fastpkt

import (
	"encoding/binary"

	"github.com/zxhio/netdev/pkg/errcode"
	"github.com/zxhio/netdev/pkg/netaddr"
)

// <linux/if_ether.h>
//
//	struct ethhdr {
//	    unsigned char h_dest[6];
//	    unsigned char h_source[6];
//	    __be16 h_proto;
//	};

const (
	SizeofEthernet = 14

	// Type/length values up to this are an 802.3 length, above it an Ethernet II type.
	MaxEthernet8023Length = 1500
)

type EthernetII struct {
	Dst     netaddr.HwAddr
	Src     netaddr.HwAddr
	Type    uint16
	Payload []byte
}

func (*EthernetII) HeaderLen() int { return SizeofEthernet }

func (eth *EthernetII) Parse(data []byte, off int) error {
	if err := checkOffset("ethernet", data, off, SizeofEthernet); err != nil {
		return err
	}
	b := data[off:]
	copy(eth.Dst[:], b[0:6])
	copy(eth.Src[:], b[6:12])
	eth.Type = binary.BigEndian.Uint16(b[12:14])
	if eth.Type <= MaxEthernet8023Length {
		return errcode.Wrap(errcode.CodeParse, ErrPacketInvalidEthernetType, "ethernet: type 0x%04x is an 802.3 length", eth.Type)
	}
	eth.Payload = b[SizeofEthernet:]
	return nil
}

func (eth *EthernetII) Build() ([]byte, error) {
	if eth.Type <= MaxEthernet8023Length {
		return nil, errcode.New(errcode.CodeValidation, "ethernet: type 0x%04x is an 802.3 length", eth.Type)
	}
	b := make([]byte, SizeofEthernet+len(eth.Payload))
	putEthernetAddrs(b, eth.Dst, eth.Src)
	binary.BigEndian.PutUint16(b[12:14], eth.Type)
	copy(b[SizeofEthernet:], eth.Payload)
	return b, nil
}

// Ethernet8023 carries a payload length instead of a type.
type Ethernet8023 struct {
	Dst     netaddr.HwAddr
	Src     netaddr.HwAddr
	Length  uint16
	Payload []byte
}

func (*Ethernet8023) HeaderLen() int { return SizeofEthernet }

func (eth *Ethernet8023) Parse(data []byte, off int) error {
	if err := checkOffset("802.3", data, off, SizeofEthernet); err != nil {
		return err
	}
	b := data[off:]
	copy(eth.Dst[:], b[0:6])
	copy(eth.Src[:], b[6:12])
	eth.Length = binary.BigEndian.Uint16(b[12:14])
	if eth.Length > MaxEthernet8023Length {
		return errcode.Wrap(errcode.CodeParse, ErrPacketInvalidEthernetType, "802.3: length 0x%04x is an ethernet type", eth.Length)
	}
	eth.Payload = b[SizeofEthernet:]
	return nil
}

// Build sets Length from the payload.
func (eth *Ethernet8023) Build() ([]byte, error) {
	if len(eth.Payload) > MaxEthernet8023Length {
		return nil, errcode.New(errcode.CodeValidation, "802.3: payload length %d exceeds %d", len(eth.Payload), MaxEthernet8023Length)
	}
	eth.Length = uint16(len(eth.Payload))

	b := make([]byte, SizeofEthernet+len(eth.Payload))
	putEthernetAddrs(b, eth.Dst, eth.Src)
	binary.BigEndian.PutUint16(b[12:14], eth.Length)
	copy(b[SizeofEthernet:], eth.Payload)
	return b, nil
}

func putEthernetAddrs(b []byte, dst, src netaddr.HwAddr) {
	copy(b[0:6], dst[:])
	copy(b[6:12], src[:])
}

// IsEthernetII reports whether the frame at data[off:] uses a type field.
func IsEthernetII(data []byte, off int) bool {
	if off < 0 || len(data)-off < SizeofEthernet {
		return false
	}
	return binary.BigEndian.Uint16(data[off+12:off+14]) > MaxEthernet8023Length
}

// DecodeEthernet parses the frame as Ethernet II or 802.3 depending on the
// type/length field. The result is *EthernetII or *Ethernet8023.
func DecodeEthernet(data []byte) (Header, error) {
	if len(data) < SizeofEthernet {
		return nil, errTooShort("ethernet", SizeofEthernet, len(data))
	}
	if IsEthernetII(data, 0) {
		eth := &EthernetII{}
		return eth, eth.Parse(data, 0)
	}
	eth := &Ethernet8023{}
	return eth, eth.Parse(data, 0)
}
