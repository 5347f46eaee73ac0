package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Signer produces HMAC-SHA256 signatures over emitted balance reports so a
// downstream consumer can verify the report was not altered in transit.
type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(data []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(data)
	signature := mac.Sum(nil)
	return hex.EncodeToString(signature)
}

func (s *Signer) Verify(data []byte, signature string) (bool, error) {
	expectedSignature := s.Sign(data)

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		s.logger.Warn("Signature verification failed",
			slog.String("expected", expectedSignature),
			slog.String("received", signature))
		return false, fmt.Errorf("invalid signature")
	}

	return true, nil
}

// SignReport binds a report body to the run that produced it.
func (s *Signer) SignReport(runID string, report []byte) string {
	data := fmt.Sprintf("%s:%s", runID, report)
	return s.Sign([]byte(data))
}

// VerifyReport checks a report signature produced by SignReport.
func (s *Signer) VerifyReport(runID string, report []byte, signature string) (bool, error) {
	data := fmt.Sprintf("%s:%s", runID, report)
	return s.Verify([]byte(data), signature)
}
