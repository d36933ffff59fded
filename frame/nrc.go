package frame

import "fmt"

// NegativeResponseCode is an ISO 14229 NRC byte (0x10..0xFE).
// ResponsePending (0x78) is an intermediate signal, not a terminal
// error: callers must keep waiting rather than surfacing it.
type NegativeResponseCode byte

const (
	NRCGeneralReject                             NegativeResponseCode = 0x10
	NRCServiceNotSupported                       NegativeResponseCode = 0x11
	NRCSubFunctionNotSupported                   NegativeResponseCode = 0x12
	NRCIncorrectMessageLengthOrInvalidFormat     NegativeResponseCode = 0x13
	NRCResponseTooLong                           NegativeResponseCode = 0x14
	NRCBusyRepeatRequest                         NegativeResponseCode = 0x21
	NRCConditionsNotCorrect                      NegativeResponseCode = 0x22
	NRCRequestSequenceError                      NegativeResponseCode = 0x24
	NRCNoResponseFromSubnetComponent             NegativeResponseCode = 0x25
	NRCFailurePreventsExecutionOfRequestedAction NegativeResponseCode = 0x26
	NRCRequestOutOfRange                         NegativeResponseCode = 0x31
	NRCSecurityAccessDenied                      NegativeResponseCode = 0x33
	NRCInvalidKey                                NegativeResponseCode = 0x35
	NRCExceededNumberOfAttempts                  NegativeResponseCode = 0x36
	NRCRequiredTimeDelayNotExpired                NegativeResponseCode = 0x37
	NRCUploadDownloadNotAccepted                 NegativeResponseCode = 0x70
	NRCTransferDataSuspended                     NegativeResponseCode = 0x71
	NRCGeneralProgrammingFailure                 NegativeResponseCode = 0x72
	NRCWrongBlockSequenceCounter                 NegativeResponseCode = 0x73
	NRCResponsePending                           NegativeResponseCode = 0x78
	NRCSubFunctionNotSupportedInActiveSession    NegativeResponseCode = 0x7E
	NRCServiceNotSupportedInActiveSession        NegativeResponseCode = 0x7F
	NRCVehicleSpeedTooHigh                       NegativeResponseCode = 0x81
	NRCRPMTooHigh                                NegativeResponseCode = 0x82
	NRCRPMTooLow                                 NegativeResponseCode = 0x83
	NRCEngineIsRunning                           NegativeResponseCode = 0x84
	NRCEngineIsNotRunning                        NegativeResponseCode = 0x85
	NRCEngineRunTimeTooLow                       NegativeResponseCode = 0x86
	NRCTemperatureTooHigh                        NegativeResponseCode = 0x87
	NRCTemperatureTooLow                         NegativeResponseCode = 0x88
	NRCThrottlePedalTooHigh                      NegativeResponseCode = 0x89
	NRCThrottlePedalTooLow                       NegativeResponseCode = 0x8A
	NRCTransmissionRangeNotInNeutral             NegativeResponseCode = 0x8B
	NRCTransmissionRangeNotInGear                NegativeResponseCode = 0x8C
	NRCBrakeSwitchNotClosed                      NegativeResponseCode = 0x8D
	NRCShifterLeverNotInPark                     NegativeResponseCode = 0x8F
	NRCTorqueConverterClutchLocked               NegativeResponseCode = 0x90
	NRCVoltageTooHigh                            NegativeResponseCode = 0x91
	NRCVoltageTooLow                             NegativeResponseCode = 0x92
)

var nrcNames = map[NegativeResponseCode]string{
	NRCGeneralReject:                             "general reject",
	NRCServiceNotSupported:                       "service not supported",
	NRCSubFunctionNotSupported:                   "sub-function not supported",
	NRCIncorrectMessageLengthOrInvalidFormat:     "incorrect message length or invalid format",
	NRCResponseTooLong:                           "response too long",
	NRCBusyRepeatRequest:                         "busy, repeat request",
	NRCConditionsNotCorrect:                      "conditions not correct",
	NRCRequestSequenceError:                      "request sequence error",
	NRCNoResponseFromSubnetComponent:             "no response from subnet component",
	NRCFailurePreventsExecutionOfRequestedAction: "failure prevents execution of requested action",
	NRCRequestOutOfRange:                         "request out of range",
	NRCSecurityAccessDenied:                      "security access denied",
	NRCInvalidKey:                                "invalid key",
	NRCExceededNumberOfAttempts:                  "exceeded number of attempts",
	NRCRequiredTimeDelayNotExpired:               "required time delay not expired",
	NRCUploadDownloadNotAccepted:                 "upload/download not accepted",
	NRCTransferDataSuspended:                     "transfer data suspended",
	NRCGeneralProgrammingFailure:                 "general programming failure",
	NRCWrongBlockSequenceCounter:                 "wrong block sequence counter",
	NRCResponsePending:                           "request correctly received, response pending",
	NRCSubFunctionNotSupportedInActiveSession:    "sub-function not supported in active session",
	NRCServiceNotSupportedInActiveSession:        "service not supported in active session",
	NRCVehicleSpeedTooHigh:                       "vehicle speed too high",
	NRCRPMTooHigh:                                "RPM too high",
	NRCRPMTooLow:                                 "RPM too low",
	NRCEngineIsRunning:                           "engine is running",
	NRCEngineIsNotRunning:                        "engine is not running",
	NRCEngineRunTimeTooLow:                       "engine run time too low",
	NRCTemperatureTooHigh:                        "temperature too high",
	NRCTemperatureTooLow:                         "temperature too low",
	NRCThrottlePedalTooHigh:                      "throttle pedal too high",
	NRCThrottlePedalTooLow:                       "throttle pedal too low",
	NRCTransmissionRangeNotInNeutral:             "transmission range not in neutral",
	NRCTransmissionRangeNotInGear:                "transmission range not in gear",
	NRCBrakeSwitchNotClosed:                      "brake switch not closed",
	NRCShifterLeverNotInPark:                     "shifter lever not in park",
	NRCTorqueConverterClutchLocked:               "torque converter clutch locked",
	NRCVoltageTooHigh:                            "voltage too high",
	NRCVoltageTooLow:                             "voltage too low",
}

// IsResponsePending reports whether code is the transient 0x78 marker.
func (n NegativeResponseCode) IsResponsePending() bool { return n == NRCResponsePending }

func (n NegativeResponseCode) String() string {
	if name, ok := nrcNames[n]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", byte(n))
}
