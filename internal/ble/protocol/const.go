// Package protocol implements the framed binary protocol spoken by eFIRE
// fireplace controllers over BLE: message framing and checksums, opcodes,
// and decoders for the fixed-layout response payloads.
package protocol

import "fmt"

// Frame sentinels.
const (
	Header       byte = 0xAB
	RequestType  byte = 0xAA
	ResponseType byte = 0xBB
	Footer       byte = 0x55

	// MinMessageLength is the shortest frame that can pass validation:
	// header, type, length, opcode, checksum and footer.
	MinMessageLength = 6

	// MaxParamLength is the longest parameter whose frame length still
	// fits the one-byte LENGTH field (opcode, checksum and footer count).
	MaxParamLength = 0xFF - 3
)

// Maximum values of the numeric function-block fields.
const (
	MaxFlameHeight          = 6
	MaxBlowerSpeed          = 6
	MaxNightLightBrightness = 6
)

// Opcode is the first payload byte of a request or response.
type Opcode byte

const (
	SetIFCCmd1    Opcode = 0x27
	SetIFCCmd2    Opcode = 0x28
	ResetPassword Opcode = 0x3F
	SetLEDPower   Opcode = 0xB1
	SetLEDColor   Opcode = 0xC1
	SetTimer      Opcode = 0xC3
	SetPower      Opcode = 0xC4
	SendPassword  Opcode = 0xC5
	PasswordMgmt  Opcode = 0xC6
	SyncTime      Opcode = 0xC7

	GetLEDState           Opcode = 0xE0
	GetLEDColor           Opcode = 0xE1
	GetLEDMode            Opcode = 0xE2
	GetIFCCmd1State       Opcode = 0xE3
	GetIFCCmd2State       Opcode = 0xE4
	GetTimer              Opcode = 0xE6
	GetPowerState         Opcode = 0xE7
	PasswordRead          Opcode = 0xE8
	PasswordSet           Opcode = 0xE9
	TimeSync              Opcode = 0xEA
	GetLEDControllerState Opcode = 0xEB
	GetRemoteUsage        Opcode = 0xEE
	SetLEDMode            Opcode = 0xF1
	GetBLEVersion         Opcode = 0xF2
	GetMCUVersion         Opcode = 0xF3
	GetAuxCtrl            Opcode = 0xF4
	SetPassword           Opcode = 0xF5
)

var opcodeNames = map[Opcode]string{
	SetIFCCmd1:            "SET_IFC_CMD1",
	SetIFCCmd2:            "SET_IFC_CMD2",
	ResetPassword:         "RESET_PASSWORD",
	SetLEDPower:           "SET_LED_POWER",
	SetLEDColor:           "SET_LED_COLOR",
	SetTimer:              "SET_TIMER",
	SetPower:              "SET_POWER",
	SendPassword:          "SEND_PASSWORD",
	PasswordMgmt:          "PASSWORD_MGMT",
	SyncTime:              "SYNC_TIME",
	GetLEDState:           "GET_LED_STATE",
	GetLEDColor:           "GET_LED_COLOR",
	GetLEDMode:            "GET_LED_MODE",
	GetIFCCmd1State:       "GET_IFC_CMD1_STATE",
	GetIFCCmd2State:       "GET_IFC_CMD2_STATE",
	GetTimer:              "GET_TIMER",
	GetPowerState:         "GET_POWER_STATE",
	PasswordRead:          "PASSWORD_READ",
	PasswordSet:           "PASSWORD_SET",
	TimeSync:              "TIME_SYNC",
	GetLEDControllerState: "GET_LED_CONTROLLER_STATE",
	GetRemoteUsage:        "GET_REMOTE_USAGE",
	SetLEDMode:            "SET_LED_MODE",
	GetBLEVersion:         "GET_BLE_VERSION",
	GetMCUVersion:         "GET_MCU_VERSION",
	GetAuxCtrl:            "GET_AUX_CTRL",
	SetPassword:           "SET_PASSWORD",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02X)", byte(o))
}

// Return codes carried in the first byte of simple command responses.
const (
	ReturnSuccess byte = 0x00
	ReturnFailure byte = 0x01
)

// Power sentinels used by SET_POWER and GET_POWER_STATE.
const (
	PowerOff byte = 0x00
	PowerOn  byte = 0xFF
)

// AuxControlState reports whether the wired auxiliary control is in use.
type AuxControlState byte

const (
	AuxControlUsed    AuxControlState = 0x00
	AuxControlNotUsed AuxControlState = 0xFF
)

func (s AuxControlState) String() string {
	switch s {
	case AuxControlUsed:
		return "used"
	case AuxControlNotUsed:
		return "not used"
	default:
		return fmt.Sprintf("AuxControlState(0x%02X)", byte(s))
	}
}

// Password management actions sent with PASSWORD_MGMT.
const (
	PasswordActionReset byte = 0x3F
	PasswordActionSet   byte = 0xF5
)

// Results of SEND_PASSWORD.
const (
	PasswordSetSuccess   byte = 0x00
	PasswordSetFailed    byte = 0x01
	PasswordInvalid      byte = 0x19
	PasswordLoginSuccess byte = 0x35
)

// Results of PASSWORD_SET.
const (
	PasswordChangeFailed  byte = 0x25
	PasswordChangeSuccess byte = 0x53
)

// GATT contract surface. All UUIDs are 16-bit values on the Bluetooth SIG base.
const (
	ServiceUUID          = "0000ff00-0000-1000-8000-00805f9b34fb"
	WriteCharUUID        = "0000ff01-0000-1000-8000-00805f9b34fb"
	ReadCharUUID         = "0000ff02-0000-1000-8000-00805f9b34fb"
	ClientConfigDescUUID = "00002902-0000-1000-8000-00805f9b34fb"
	ModelNumberCharUUID  = "00002a00-0000-1000-8000-00805f9b34fb"
)
