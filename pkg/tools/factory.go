package tools

import (
	"fmt"
	"time"
)

// Factory builds per-session registries from a configured tool set. The
// hangup callback differs per call, so registries cannot be shared.
type Factory struct {
	// Enabled lists the tool names to register. Nil enables the tools
	// that need no external services: hangup, get_datetime and
	// get_caller_phone.
	Enabled []string

	// Timeout bounds each tool invocation.
	Timeout time.Duration

	// HangupGrace delays call teardown after the hangup tool fires.
	HangupGrace time.Duration

	// SMS is required when send_otp or verify_otp is enabled.
	SMS SMSSender

	// OTPTTL bounds code validity for the OTP tools.
	OTPTTL time.Duration
}

// DefaultToolNames are the tools enabled when Factory.Enabled is nil.
var DefaultToolNames = []string{"hangup", "get_datetime", "get_caller_phone"}

// NewRegistry builds a registry for one session. hangup is invoked when the
// model uses the hangup tool.
func (f *Factory) NewRegistry(hangup HangupFunc) (*Registry, error) {
	enabled := f.Enabled
	if enabled == nil {
		enabled = DefaultToolNames
	}

	reg := NewRegistry(f.Timeout)
	var otp *OTPService
	otpService := func() *OTPService {
		if otp == nil {
			otp = NewOTPService(f.SMS, f.OTPTTL)
		}
		return otp
	}

	for _, name := range enabled {
		var t Tool
		switch name {
		case "hangup":
			t = &HangupTool{Hangup: hangup, Grace: f.HangupGrace}
		case "get_datetime":
			t = &DateTimeTool{}
		case "get_caller_phone":
			t = &CallerPhoneTool{}
		case "send_otp":
			if f.SMS == nil {
				return nil, fmt.Errorf("tool %s requires an sms sender", name)
			}
			t = &SendOTPTool{Service: otpService()}
		case "verify_otp":
			if f.SMS == nil {
				return nil, fmt.Errorf("tool %s requires an sms sender", name)
			}
			t = &VerifyOTPTool{Service: otpService()}
		default:
			return nil, fmt.Errorf("unknown tool in configuration: %s", name)
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
