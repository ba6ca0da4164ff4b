// Package canopen classifies raw CAN identifiers against the CANopen
// pre-defined connection set and extracts node addressing.
package canopen

const (
	// MaskCobID keeps the 11 identifier bits CANopen uses.
	MaskCobID uint32 = 0x7FF
	// MaskNodeID extracts the 7-bit node id from a COB-ID.
	MaskNodeID uint16 = 0x7F
	// MaxNodeID is the highest addressable node id.
	MaxNodeID uint8 = 0x7F
)

// Function code base identifiers, CiA 301 pre-defined connection set.
const (
	CobNMT       uint16 = 0x000
	CobEmergency uint16 = 0x080
	CobTPDO1     uint16 = 0x180
	CobRPDO1     uint16 = 0x200
	CobTPDO2     uint16 = 0x280
	CobRPDO2     uint16 = 0x300
	CobTPDO3     uint16 = 0x380
	CobRPDO3     uint16 = 0x400
	CobTPDO4     uint16 = 0x480
	CobRPDO4     uint16 = 0x500
	CobSDOTx     uint16 = 0x580
	CobSDORx     uint16 = 0x600
	CobHeartbeat uint16 = 0x700
)

// MessageType is the CANopen category of a COB-ID.
type MessageType uint8

const (
	TypeUnknown MessageType = iota
	TypeNMT
	TypeEmergency
	TypeTPDO1
	TypeRPDO1
	TypeTPDO2
	TypeRPDO2
	TypeTPDO3
	TypeRPDO3
	TypeTPDO4
	TypeRPDO4
	TypeSDOTx
	TypeSDORx
	TypeHeartbeat
)

var typeNames = map[MessageType]string{
	TypeUnknown:   "Unknown",
	TypeNMT:       "NMT",
	TypeEmergency: "Emergency",
	TypeTPDO1:     "TPDO1",
	TypeRPDO1:     "RPDO1",
	TypeTPDO2:     "TPDO2",
	TypeRPDO2:     "RPDO2",
	TypeTPDO3:     "TPDO3",
	TypeRPDO3:     "RPDO3",
	TypeTPDO4:     "TPDO4",
	TypeRPDO4:     "RPDO4",
	TypeSDOTx:     "SDO Tx",
	TypeSDORx:     "SDO Rx",
	TypeHeartbeat: "Heartbeat",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// IsPDO reports whether the type is any transmit or receive PDO.
func (t MessageType) IsPDO() bool {
	switch t {
	case TypeTPDO1, TypeTPDO2, TypeTPDO3, TypeTPDO4,
		TypeRPDO1, TypeRPDO2, TypeRPDO3, TypeRPDO4:
		return true
	}
	return false
}

// Classify maps an 11-bit COB-ID onto its CANopen category. The
// function-code windows are each 0x80 wide; NMT is the single id 0x000.
func Classify(cobID uint16) MessageType {
	cobID &= uint16(MaskCobID)
	switch {
	case cobID == CobNMT:
		return TypeNMT
	case cobID >= CobEmergency && cobID < CobEmergency+0x80:
		return TypeEmergency
	case cobID >= CobTPDO1 && cobID < CobRPDO1:
		return TypeTPDO1
	case cobID >= CobRPDO1 && cobID < CobTPDO2:
		return TypeRPDO1
	case cobID >= CobTPDO2 && cobID < CobRPDO2:
		return TypeTPDO2
	case cobID >= CobRPDO2 && cobID < CobTPDO3:
		return TypeRPDO2
	case cobID >= CobTPDO3 && cobID < CobRPDO3:
		return TypeTPDO3
	case cobID >= CobRPDO3 && cobID < CobTPDO4:
		return TypeRPDO3
	case cobID >= CobTPDO4 && cobID < CobRPDO4:
		return TypeTPDO4
	case cobID >= CobRPDO4 && cobID < CobSDOTx:
		return TypeRPDO4
	case cobID >= CobSDOTx && cobID < CobSDORx:
		return TypeSDOTx
	case cobID >= CobSDORx && cobID < CobHeartbeat:
		return TypeSDORx
	case cobID >= CobHeartbeat && cobID < CobHeartbeat+0x80:
		return TypeHeartbeat
	}
	return TypeUnknown
}

// NodeID extracts the 7-bit node id from a COB-ID.
func NodeID(cobID uint16) uint8 {
	return uint8(cobID & MaskNodeID)
}
