package netaddr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zxhio/netdev/pkg/errcode"
)

// IPv4Range e.g. 192.168.10.10-192.168.10.20
type IPv4Range struct {
	Start IPv4Addr `json:"start,omitempty"`
	End   IPv4Addr `json:"end,omitempty"`
}

func (r IPv4Range) Contains(v IPv4Addr) bool {
	return v >= r.Start && v <= r.End
}

func (r IPv4Range) Compare(other IPv4Range) int {
	if r.Start != other.Start {
		if r.Start < other.Start {
			return -1
		}
		return 1
	}
	if r.End < other.End {
		return -1
	}
	if r.End > other.End {
		return 1
	}
	return 0
}

// Len is the number of addresses in the range.
func (r IPv4Range) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return uint64(r.End-r.Start) + 1
}

// Each calls fn for every address in order until fn returns false.
func (r IPv4Range) Each(fn func(IPv4Addr) bool) {
	if r.End < r.Start {
		return
	}
	for addr := r.Start; ; addr++ {
		if !fn(addr) || addr == r.End {
			return
		}
	}
}

func (IPv4Range) Type() string {
	return "IPv4Range"
}

func (r IPv4Range) String() string {
	if r.Start == r.End {
		if r.Start == 0 {
			return ""
		}
		return r.Start.String()
	}
	return fmt.Sprintf("%s-%s", r.Start.String(), r.End.String())
}

func (r *IPv4Range) Set(s string) error {
	fields := strings.Split(s, "-")
	if len(fields) != 1 && len(fields) != 2 {
		return errcode.New(errcode.CodeValidation, "invalid iprange: %s", s)
	}

	start, err := ParseIPv4Addr(fields[0])
	if err != nil {
		return err
	}
	end := start

	if len(fields) == 2 {
		end, err = ParseIPv4Addr(fields[1])
		if err != nil {
			return err
		}
	}
	if start > end {
		return errcode.New(errcode.CodeValidation, "invalid iprange: %s, end less than start", s)
	}

	r.Start = start
	r.End = end
	return nil
}

func (r IPv4Range) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *IPv4Range) UnmarshalJSON(data []byte) error {
	return unmarshal(r, data)
}

func NewIPv4Range(s string) (IPv4Range, error) {
	var r IPv4Range
	return r, r.Set(s)
}
