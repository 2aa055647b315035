package netaddr

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zxhio/netdev/pkg/errcode"
)

func TestAddrV4(t *testing.T) {
	testCases := []struct {
		addrV4  IPv4Addr
		addrStr string
	}{
		{IPv4Addr(127<<24 + 1), "127.0.0.1"},
		{IPv4Addr(192<<24 + 168<<16 + 10<<8 + 10), "192.168.10.10"},
		{IPv4Addr(192<<24 + 168<<16 + 1<<8 + 1), "192.168.1.1"},
		{IPv4Addr(0), "0.0.0.0"},
		{IPv4Addr(0xffffffff), "255.255.255.255"},
	}

	for _, tc := range testCases {
		t.Run(tc.addrStr, func(t *testing.T) {
			var v4 IPv4Addr
			err := v4.Set(tc.addrStr)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, tc.addrV4, v4)
			assert.Equal(t, tc.addrStr, tc.addrV4.String())
			assert.True(t, net.ParseIP(tc.addrStr).Equal(tc.addrV4.ToIP()))

			// Bytes round trip
			v4FromBytes, err := NewIPv4AddrFromBytes(tc.addrV4.ToBytes())
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, tc.addrStr, v4FromBytes.String())

			// Marshal/Unmarshal
			data, err := json.Marshal(tc.addrV4)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, fmt.Sprintf(`"%s"`, tc.addrStr), string(data))

			err = json.Unmarshal(data, &v4)
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, tc.addrV4, v4)
		})
	}
}

func TestAddrV4Invalid(t *testing.T) {
	for _, s := range []string{"1.2.3", "1.2.3.4.5", "256.1.1.1", "a.b.c.d", "", "1..2.3", "::1", "1.2.3.-4"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseIPv4Addr(s)
			assert.True(t, errcode.Is(err, errcode.CodeValidation), s)
		})
	}

	for _, b := range [][]byte{nil, {1, 2, 3}, {1, 2, 3, 4, 5}} {
		_, err := NewIPv4AddrFromBytes(b)
		assert.True(t, errcode.Is(err, errcode.CodeValidation))
	}
}

func TestAddrV4Subnet(t *testing.T) {
	mask := MustParseIPv4Addr("255.255.255.0")
	assert.Equal(t, mask, NetmaskFromPrefixLen(24))
	assert.Equal(t, IPv4Addr(0), NetmaskFromPrefixLen(0))
	assert.Equal(t, IPv4Addr(0xffffffff), NetmaskFromPrefixLen(32))

	me := MustParseIPv4Addr("192.168.1.10")
	assert.True(t, me.SameSubnet(MustParseIPv4Addr("192.168.1.200"), mask))
	assert.False(t, me.SameSubnet(MustParseIPv4Addr("192.168.2.1"), mask))
	assert.Equal(t, MustParseIPv4Addr("192.168.1.0"), me.Mask(mask))
}
