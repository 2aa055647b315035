package fastpkt

import "fmt"

var etherTypeNames = map[uint16]string{
	0x0800: "IPv4",
	0x0806: "ARP",
	0x0842: "WakeOnLAN",
	0x8035: "RARP",
	0x8100: "802.1Q",
	0x86dd: "IPv6",
	0x8808: "EthernetFlowControl",
	0x8847: "MPLS",
	0x8863: "PPPoEDiscovery",
	0x8864: "PPPoESession",
	0x88a8: "802.1ad",
	0x88cc: "LLDP",
}

var ipProtocolNames = map[uint8]string{
	1:   "ICMP",
	2:   "IGMP",
	4:   "IPIP",
	6:   "TCP",
	17:  "UDP",
	41:  "IPv6",
	47:  "GRE",
	50:  "ESP",
	51:  "AH",
	58:  "ICMPv6",
	89:  "OSPF",
	112: "VRRP",
	132: "SCTP",
}

var icmpTypeNames = map[uint8]string{
	0:  "echo reply",
	3:  "destination unreachable",
	4:  "source quench",
	5:  "redirect",
	8:  "echo request",
	9:  "router advertisement",
	10: "router solicitation",
	11: "time exceeded",
	12: "parameter problem",
	13: "timestamp request",
	14: "timestamp reply",
}

var portNames = map[uint16]string{
	20:   "ftp-data",
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "domain",
	67:   "bootps",
	68:   "bootpc",
	69:   "tftp",
	80:   "http",
	110:  "pop3",
	123:  "ntp",
	137:  "netbios-ns",
	138:  "netbios-dgm",
	139:  "netbios-ssn",
	143:  "imap",
	161:  "snmp",
	162:  "snmptrap",
	179:  "bgp",
	389:  "ldap",
	443:  "https",
	445:  "microsoft-ds",
	514:  "syslog",
	520:  "route",
	993:  "imaps",
	995:  "pop3s",
	1900: "ssdp",
	3306: "mysql",
	3389: "ms-wbt-server",
	5353: "mdns",
	6379: "redis",
	8080: "http-alt",
}

func EtherTypeName(t uint16) string {
	if s, ok := etherTypeNames[t]; ok {
		return s
	}
	if t <= MaxEthernet8023Length {
		return "802.3"
	}
	return fmt.Sprintf("Unknown(0x%04x)", t)
}

func IPProtocolName(proto uint8) string {
	if s, ok := ipProtocolNames[proto]; ok {
		return s
	}
	return fmt.Sprintf("ip-proto-%d", proto)
}

func ICMPTypeName(t uint8) string {
	if s, ok := icmpTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type %d", t)
}

// PortName returns the well-known service name of port, or the number.
func PortName(port uint16) string {
	if s, ok := portNames[port]; ok {
		return s
	}
	return fmt.Sprintf("%d", port)
}
