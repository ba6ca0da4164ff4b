package sdo

import "fmt"

// SDO abort codes, CiA 301.
const (
	AbortToggleBit        uint32 = 0x05030000
	AbortTimeout          uint32 = 0x05040000
	AbortCommand          uint32 = 0x05040001
	AbortBlockSize        uint32 = 0x05040002
	AbortBlockSequence    uint32 = 0x05040003
	AbortBlockCRC         uint32 = 0x05040004
	AbortMemory           uint32 = 0x05040005
	AbortAccess           uint32 = 0x06010000
	AbortWriteOnly        uint32 = 0x06010001
	AbortReadOnly         uint32 = 0x06010002
	AbortNoObject         uint32 = 0x06020000
	AbortMappingObject    uint32 = 0x06040041
	AbortMappingLength    uint32 = 0x06040042
	AbortParameter        uint32 = 0x06040043
	AbortDevice           uint32 = 0x06040047
	AbortHardware         uint32 = 0x06060000
	AbortDataType         uint32 = 0x06070010
	AbortDataTypeHigh     uint32 = 0x06070012
	AbortDataTypeLow      uint32 = 0x06070013
	AbortNoSubindex       uint32 = 0x06090011
	AbortValueRange       uint32 = 0x06090030
	AbortValueHigh        uint32 = 0x06090031
	AbortValueLow         uint32 = 0x06090032
	AbortMinMax           uint32 = 0x06090036
	AbortResource         uint32 = 0x060A0023
	AbortGeneral          uint32 = 0x08000000
	AbortDataStore        uint32 = 0x08000020
	AbortDataStoreLocal   uint32 = 0x08000021
	AbortDataStoreState   uint32 = 0x08000022
	AbortNoDictionary     uint32 = 0x08000023
	AbortNoData           uint32 = 0x08000024
)

var abortText = map[uint32]string{
	AbortToggleBit:      "toggle bit not alternated",
	AbortTimeout:        "SDO protocol timed out",
	AbortCommand:        "client/server command specifier not valid or unknown",
	AbortBlockSize:      "invalid block size",
	AbortBlockSequence:  "invalid sequence number",
	AbortBlockCRC:       "CRC error",
	AbortMemory:         "out of memory",
	AbortAccess:         "unsupported access to an object",
	AbortWriteOnly:      "attempt to read a write only object",
	AbortReadOnly:       "attempt to write a read only object",
	AbortNoObject:       "object does not exist in the object dictionary",
	AbortMappingObject:  "object cannot be mapped to the PDO",
	AbortMappingLength:  "number and length of mapped objects would exceed PDO length",
	AbortParameter:      "general parameter incompatibility",
	AbortDevice:         "general internal incompatibility in the device",
	AbortHardware:       "access failed due to a hardware error",
	AbortDataType:       "data type does not match, length of service parameter does not match",
	AbortDataTypeHigh:   "data type does not match, length of service parameter too high",
	AbortDataTypeLow:    "data type does not match, length of service parameter too low",
	AbortNoSubindex:     "sub-index does not exist",
	AbortValueRange:     "invalid value for parameter",
	AbortValueHigh:      "value of parameter written too high",
	AbortValueLow:       "value of parameter written too low",
	AbortMinMax:         "maximum value is less than minimum value",
	AbortResource:       "resource not available",
	AbortGeneral:        "general error",
	AbortDataStore:      "data cannot be transferred or stored to the application",
	AbortDataStoreLocal: "data cannot be transferred or stored because of local control",
	AbortDataStoreState: "data cannot be transferred or stored because of the present device state",
	AbortNoDictionary:   "object dictionary dynamic generation fails or no object dictionary is present",
	AbortNoData:         "no data available",
}

// AbortText renders an abort code; unknown codes fall back to hex.
func AbortText(code uint32) string {
	if msg, ok := abortText[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown abort code 0x%08X", code)
}

// Abort is a structured SDO abort carrying the addressed object.
type Abort struct {
	Index    uint16
	Subindex uint8
	Code     uint32
}

func (a Abort) Error() string {
	return fmt.Sprintf("sdo: abort 0x%08X @ %04X:%02X: %s", a.Code, a.Index, a.Subindex, AbortText(a.Code))
}
