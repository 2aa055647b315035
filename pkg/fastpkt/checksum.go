package fastpkt

import "github.com/zxhio/netdev/pkg/netaddr"

// InternetChecksum is the one's complement of the one's complement sum of
// the 16-bit big-endian words in b[:length]. An odd trailing byte is the
// high byte of a zero-padded word.
func InternetChecksum(b []byte, length int) uint16 {
	length = min(max(length, 0), len(b))
	return tcpipChecksum(b[:length], 0)
}

// TransportChecksum computes the TCP/UDP checksum of segment with the IPv4
// pseudo header: segment words, source address words, destination address
// words, then protocol plus segment length.
func TransportChecksum(proto uint8, src, dst netaddr.IPv4Addr, segment []byte) uint16 {
	csum := sumWords(segment, 0)
	csum = sumAddr(src, csum)
	csum = sumAddr(dst, csum)
	csum += uint32(proto) + uint32(len(segment))
	return foldComplement(csum)
}

func tcpipChecksum(data []byte, csum uint32) uint16 {
	return foldComplement(sumWords(data, csum))
}

func sumWords(data []byte, csum uint32) uint32 {
	// to handle odd lengths, we loop to length - 1, incrementing by 2, then
	// handle the last byte specifically by checking against the original
	// length.
	length := len(data) - 1
	for i := 0; i < length; i += 2 {
		csum += uint32(data[i]) << 8
		csum += uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		csum += uint32(data[length]) << 8
	}
	return csum
}

func sumAddr(addr netaddr.IPv4Addr, csum uint32) uint32 {
	csum += uint32(addr >> 16)
	csum += uint32(addr & 0xffff)
	return csum
}

func foldComplement(csum uint32) uint16 {
	for csum > 0xffff {
		csum = (csum >> 16) + (csum & 0xffff)
	}
	return ^uint16(csum)
}
