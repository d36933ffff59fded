// Package busproto identifies the physical/data-link bus protocol an
// adapter has negotiated, and the handful of attributes derived from
// that choice: whether it rides on CAN, its broadcast header, and how
// many hex characters its headers render as on the wire.
package busproto

import "fmt"

// Protocol tags the bus protocol an adapter has negotiated or is
// attempting to negotiate.
type Protocol int

const (
	Unknown Protocol = iota
	Auto
	J1850PWM
	J1850VPWM
	ISO9141_2
	KWP2000_5Baud
	KWP2000_Fast
	CAN11B500K
	CAN29B500K
	CAN11B250K
	CAN29B250K
	CANSAEJ1939
	User1_11B_125K
	User2_11B_50K
)

var names = map[Protocol]string{
	Unknown:        "unknown",
	Auto:           "auto",
	J1850PWM:       "j1850_PWM",
	J1850VPWM:      "j1850_VPWM",
	ISO9141_2:      "iso9141_2",
	KWP2000_5Baud:  "kwp2000_5KBPS",
	KWP2000_Fast:   "kwp2000_FAST",
	CAN11B500K:     "can_11B_500K",
	CAN29B500K:     "can_29B_500K",
	CAN11B250K:     "can_11B_250K",
	CAN29B250K:     "can_29B_250K",
	CANSAEJ1939:    "can_SAE_J1939",
	User1_11B_125K: "user1_11B_125K",
	User2_11B_50K:  "user2_11B_50K",
}

func (p Protocol) String() string {
	if s, ok := names[p]; ok {
		return s
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

// Parse looks up a Protocol by its String() name, for config formats
// (YAML, JSON) that name protocols rather than encode their integer
// constants.
func Parse(name string) (Protocol, bool) {
	for p, s := range names {
		if s == name {
			return p, true
		}
	}
	return Unknown, false
}

// IsCAN reports whether p rides on a CAN data link.
func (p Protocol) IsCAN() bool {
	switch p {
	case CAN11B500K, CAN29B500K, CAN11B250K, CAN29B250K, CANSAEJ1939, User1_11B_125K, User2_11B_50K:
		return true
	default:
		return false
	}
}

// IsValid reports whether p is a concrete, negotiable protocol (not
// the sentinel Unknown or the meta-value Auto).
func (p Protocol) IsValid() bool {
	return p != Unknown && p != Auto
}

// Is29Bit reports whether p uses 29-bit extended CAN identifiers.
func (p Protocol) Is29Bit() bool {
	switch p {
	case CAN29B500K, CAN29B250K, CANSAEJ1939:
		return true
	default:
		return false
	}
}

// BroadcastHeader is the conventional header used to query any ECU on
// the bus for this protocol, rendered as the adapter would send it in
// an ATSH command.
func (p Protocol) BroadcastHeader() string {
	switch p {
	case CAN11B500K, CAN11B250K, User1_11B_125K, User2_11B_50K:
		return "7DF"
	case CAN29B500K, CAN29B250K:
		return "18DB33F1"
	case CANSAEJ1939:
		return "18EAFFF9"
	default:
		return ""
	}
}

// NumberOfHeaderCharacters is 3 for 11-bit protocols, 8 for 29-bit ones.
func (p Protocol) NumberOfHeaderCharacters() int {
	if p.Is29Bit() {
		return 8
	}
	return 3
}

// WireTag is the numeric ATSP/ATTP argument for p, per ELM327's
// protocol table. Zero means "no direct wire tag" (Unknown/Auto).
func (p Protocol) WireTag() byte {
	switch p {
	case J1850PWM:
		return '1'
	case J1850VPWM:
		return '2'
	case ISO9141_2:
		return '3'
	case KWP2000_5Baud:
		return '4'
	case KWP2000_Fast:
		return '5'
	case CAN11B500K:
		return '6'
	case CAN29B500K:
		return '7'
	case CAN11B250K:
		return '8'
	case CAN29B250K:
		return '9'
	case CANSAEJ1939:
		return 'A'
	case User1_11B_125K:
		return 'B'
	case User2_11B_50K:
		return 'C'
	default:
		return 0
	}
}

// FromWireTag parses the ATDPN response's numeric digit back into a Protocol.
func FromWireTag(tag byte) Protocol {
	switch tag {
	case '1':
		return J1850PWM
	case '2':
		return J1850VPWM
	case '3':
		return ISO9141_2
	case '4':
		return KWP2000_5Baud
	case '5':
		return KWP2000_Fast
	case '6':
		return CAN11B500K
	case '7':
		return CAN29B500K
	case '8':
		return CAN11B250K
	case '9':
		return CAN29B250K
	case 'A', 'a':
		return CANSAEJ1939
	case 'B', 'b':
		return User1_11B_125K
	case 'C', 'c':
		return User2_11B_50K
	default:
		return Unknown
	}
}
