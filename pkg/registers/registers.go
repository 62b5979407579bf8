// Package registers describes the IIDC register map: offsets, bit layouts
// and the enumerations encoded in them.
package registers

// ConfigROMBase is the bus address every transport offset is relative to.
const ConfigROMBase uint64 = 0xFFFFF0000000

// Bus info block.
const (
	GUIDHi uint64 = 0x40C
	GUIDLo uint64 = 0x410
)

// CommandRegister is an offset relative to the camera's command register base.
type CommandRegister uint64

const (
	CommandRegisterInitialize   CommandRegister = 0x000
	CommandRegisterVFormatInq   CommandRegister = 0x100
	CommandRegisterVModeInq0    CommandRegister = 0x180
	CommandRegisterVModeInq7    CommandRegister = 0x19C
	CommandRegisterVRateInq0    CommandRegister = 0x200
	CommandRegisterVCSRInq70    CommandRegister = 0x2E0
	CommandRegisterBasicFuncInq CommandRegister = 0x400
	CommandRegisterCurVFrmRate  CommandRegister = 0x600
	CommandRegisterCurVMode     CommandRegister = 0x604
	CommandRegisterCurVFormat   CommandRegister = 0x608
	CommandRegisterISOData      CommandRegister = 0x60C
	CommandRegisterCameraPower  CommandRegister = 0x610
	CommandRegisterISOEn        CommandRegister = 0x614
)

// Format7Register is an offset relative to a Format7 mode's CSR block.
type Format7Register uint64

const (
	Format7RegisterMaxImageSizeInq  Format7Register = 0x000
	Format7RegisterUnitSizeInq      Format7Register = 0x004
	Format7RegisterImagePosition    Format7Register = 0x008
	Format7RegisterImageSize        Format7Register = 0x00C
	Format7RegisterColorCodingID    Format7Register = 0x010
	Format7RegisterColorCodingInq   Format7Register = 0x014
	Format7RegisterPixelNumberInq   Format7Register = 0x034
	Format7RegisterTotalBytesHiInq  Format7Register = 0x038
	Format7RegisterTotalBytesLoInq  Format7Register = 0x03C
	Format7RegisterPacketParaInq    Format7Register = 0x040
	Format7RegisterBytePerPacket    Format7Register = 0x044
	Format7RegisterPacketPerFrame   Format7Register = 0x048
	Format7RegisterUnitPositionInq  Format7Register = 0x04C
	Format7RegisterFrameIntervalInq Format7Register = 0x050
	Format7RegisterDataDepthInq     Format7Register = 0x054
	Format7RegisterColorFilterID    Format7Register = 0x058
	Format7RegisterValueSetting     Format7Register = 0x07C
)

// Value setting register bits (IIDC 1.30+).
const (
	ValueSettingPresent    uint32 = 1 << 31
	ValueSettingSetting    uint32 = 1 << 30
	ValueSettingErrorFlag1 uint32 = 1 << 23
	ValueSettingErrorFlag2 uint32 = 1 << 22
)

const (
	ISOEnabled         uint32 = 1 << 31
	InitializeCamera   uint32 = 1 << 31
	OperationMode1394B uint32 = 1 << 15
)

// Hi16 returns the upper half of a quadlet.
func Hi16(q uint32) uint32 {
	return (q & 0xFFFF0000) >> 16
}

// Lo16 returns the lower half of a quadlet.
func Lo16(q uint32) uint32 {
	return q & 0x0000FFFF
}

// Pack16 builds a quadlet from two 16 bit halves.
func Pack16(hi, lo uint32) uint32 {
	return (hi&0xFFFF)<<16 | lo&0xFFFF
}
