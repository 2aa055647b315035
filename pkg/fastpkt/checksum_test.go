package fastpkt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zxhio/netdev/pkg/netaddr"
)

func TestInternetChecksum(t *testing.T) {
	testCases := []struct {
		name   string
		data   []byte
		length int
		want   uint16
	}{
		{"empty", nil, 0, 0xffff},
		{"single word", []byte{0x00, 0x01}, 2, 0xfffe},
		{"odd trailing byte", []byte{0x00, 0x01, 0xf2}, 3, 0x0dfe},
		{"carry fold", []byte{0xff, 0xff, 0x00, 0x01}, 4, 0xfffe},
		{"length clamps", []byte{0x00, 0x01}, 10, 0xfffe},
		{"length prefix", []byte{0x00, 0x01, 0x12, 0x34}, 2, 0xfffe},
		{"negative length", []byte{0x00, 0x01}, -1, 0xffff},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InternetChecksum(tc.data, tc.length))
		})
	}
}

func TestInternetChecksumVerify(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11, 0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0xc7}
	csum := InternetChecksum(data, len(data))
	assert.Equal(t, uint16(0xb861), csum)

	data[10], data[11] = byte(csum>>8), byte(csum)
	assert.Equal(t, uint16(0), InternetChecksum(data, len(data)))
}

func TestTransportChecksum(t *testing.T) {
	src := netaddr.MustParseIPv4Addr("10.0.0.1")
	dst := netaddr.MustParseIPv4Addr("10.0.0.2")

	// UDP 1234 > 80 with payload "abc", checksum field zeroed
	segment := []byte{0x04, 0xd2, 0x00, 0x50, 0x00, 0x0b, 0x00, 0x00, 'a', 'b', 'c'}
	csum := TransportChecksum(IPProtocolUDP, src, dst, segment)
	assert.Equal(t, uint16(0x2251), csum)

	// Summing again with the checksum in place verifies to zero
	segment[6], segment[7] = byte(csum>>8), byte(csum)
	assert.Equal(t, uint16(0), TransportChecksum(IPProtocolUDP, src, dst, segment))

	// Swapping addresses does not change a one's complement sum
	segment[6], segment[7] = 0, 0
	assert.Equal(t, csum, TransportChecksum(IPProtocolUDP, dst, src, segment))
}
