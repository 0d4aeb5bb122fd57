package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// OTPConfig tunes code generation.
type OTPConfig struct {
	Length   int
	TTL      time.Duration
	HashCost int
}

// OTPService generates, hashes and validates one-time numeric codes. It has no side effects.
type OTPService struct {
	config OTPConfig
	now    func() time.Time
}

// NewOTPService constructs an OTPService, filling in defaults for zero values.
func NewOTPService(config OTPConfig) *OTPService {
	if config.Length <= 0 {
		config.Length = 6
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.HashCost < bcrypt.MinCost || config.HashCost > bcrypt.MaxCost {
		config.HashCost = bcrypt.DefaultCost
	}
	return &OTPService{config: config, now: time.Now}
}

// Length returns the configured number of digits.
func (s *OTPService) Length() int {
	return s.config.Length
}

// TTL returns how long an issued code stays valid.
func (s *OTPService) TTL() time.Duration {
	return s.config.TTL
}

var ten = big.NewInt(10)

// Generate returns a uniformly random decimal code of the configured length.
func (s *OTPService) Generate() (string, error) {
	var b strings.Builder
	b.Grow(s.config.Length)
	for i := 0; i < s.config.Length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// Hash returns the bcrypt digest of code.
func (s *OTPService) Hash(code string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(code), s.config.HashCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(digest), nil
}

// Issue generates a code and returns it with its digest and expiry.
func (s *OTPService) Issue() (code, digest string, expiresAt time.Time, err error) {
	code, err = s.Generate()
	if err != nil {
		return "", "", time.Time{}, err
	}
	digest, err = s.Hash(code)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return code, digest, s.Expiry(), nil
}

// Validate reports whether code matches digest and expiresAt has not passed.
func (s *OTPService) Validate(code, digest string, expiresAt *time.Time) bool {
	if code == "" || digest == "" || expiresAt == nil {
		return false
	}
	if s.now().After(*expiresAt) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(code)) == nil
}

// Expiry returns the expiry instant for a code issued now.
func (s *OTPService) Expiry() time.Time {
	return s.now().Add(s.config.TTL).UTC()
}
