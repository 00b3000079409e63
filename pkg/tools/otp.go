package tools

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// DefaultOTPTTL is how long a one-time passcode stays valid.
const DefaultOTPTTL = 5 * time.Minute

// SMSSender delivers a text message. Implementations wrap an SMS provider;
// tests substitute a capture fake.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

type otpEntry struct {
	code    string
	expires time.Time
}

// OTPService issues and verifies one-time passcodes, keyed by phone number.
// One service is shared by the send and verify tools of a session.
type OTPService struct {
	sender SMSSender
	ttl    time.Duration

	mu    sync.Mutex
	codes map[string]otpEntry
	now   func() time.Time
}

// NewOTPService returns a service delivering codes through sender. A
// non-positive ttl falls back to DefaultOTPTTL.
func NewOTPService(sender SMSSender, ttl time.Duration) *OTPService {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPService{
		sender: sender,
		ttl:    ttl,
		codes:  make(map[string]otpEntry),
		now:    time.Now,
	}
}

func (s *OTPService) generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue generates a fresh code for phone and sends it by SMS. A new code
// replaces any outstanding one for the same number.
func (s *OTPService) Issue(ctx context.Context, phone string) error {
	if s.sender == nil {
		return errors.New("otp: no sms sender configured")
	}
	code, err := s.generate()
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, phone, "Your verification code is "+code); err != nil {
		return fmt.Errorf("otp: send sms: %w", err)
	}

	s.mu.Lock()
	s.codes[phone] = otpEntry{code: code, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Verify checks code against the outstanding one for phone. A successful
// verification consumes the code.
func (s *OTPService) Verify(phone, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[phone]
	if !ok || s.now().After(entry.expires) {
		delete(s.codes, phone)
		return false
	}
	if entry.code != code {
		return false
	}
	delete(s.codes, phone)
	return true
}

// SendOTPTool texts a one-time passcode to the caller's phone.
type SendOTPTool struct {
	Service *OTPService
}

func (t *SendOTPTool) Name() string { return "send_otp" }
func (t *SendOTPTool) Description() string {
	return "Send a one-time verification code by SMS to the caller's phone number."
}

func (t *SendOTPTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *SendOTPTool) Handle(ctx context.Context, inv Invocation) (any, error) {
	if inv.CallerID == "" {
		return nil, errors.New("caller phone number is not available")
	}
	if err := t.Service.Issue(ctx, inv.CallerID); err != nil {
		return nil, err
	}
	return map[string]string{"message": "verification code sent"}, nil
}

// VerifyOTPTool checks a code the caller read back against the issued one.
type VerifyOTPTool struct {
	Service *OTPService
}

func (t *VerifyOTPTool) Name() string { return "verify_otp" }
func (t *VerifyOTPTool) Description() string {
	return "Verify the one-time code the caller received by SMS."
}

func (t *VerifyOTPTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"code": {"type": "string", "description": "The 6-digit code the caller read out."}
		},
		"required": ["code"]
	}`)
}

func (t *VerifyOTPTool) Handle(_ context.Context, inv Invocation) (any, error) {
	var in struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(inv.Input, &in); err != nil || in.Code == "" {
		return nil, errors.New("a code is required")
	}
	if inv.CallerID == "" {
		return nil, errors.New("caller phone number is not available")
	}
	return map[string]bool{"verified": t.Service.Verify(inv.CallerID, in.Code)}, nil
}
