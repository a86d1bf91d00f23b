package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/codeguide/pkg/cryptox"
	"github.com/aussiebroadwan/codeguide/pkg/jwtx"
)

// sessionKeyID names the single session signing key in token headers.
const sessionKeyID = "codeguide-session"

// InitSessionKeys loads the Ed25519 session key from cfg.SigningKeyFile,
// generating it on first start. With no file configured the key lives only
// in memory and every restart logs everybody out.
func InitSessionKeys(cfg Config, logger *slog.Logger) (*jwtx.EdDSASigner, *jwtx.EdDSAVerifier, error) {
	var (
		pemKey []byte
		err    error
	)

	if cfg.SigningKeyFile == "" {
		logger.Warn("no signing key file configured, using an ephemeral session key")
		pemKey, err = cryptox.GenerateEd25519Key()
	} else {
		pemKey, err = cryptox.LoadOrGenerateEd25519Key(cfg.SigningKeyFile)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session key: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA(sessionKeyID, pemKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse session key: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, nil, err
	}

	logger.Info("session signing key ready",
		"algorithm", signer.Alg(),
		"kid", signer.KID(),
		"issuer", cfg.Issuer,
	)
	return signer, jwtx.NewVerifierEdDSA(signer.KID(), signer.PublicKey(), cfg.Issuer), nil
}
