package app

import (
	"context"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/idx"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ephemeralRSABits is the modulus size of generated RSA keys.
const ephemeralRSABits = 3072

// secretsClient is the part of the Secrets Manager API the aws key source uses.
type secretsClient interface {
	GetSecretValue(
		ctx context.Context,
		in *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// InitSigner builds the token signer from the configured key source.
//
// Key sources:
//   - "ephemeral": a key is generated on startup and held only in memory.
//     Every JWT and ID token becomes unverifiable when the service restarts.
//   - "env": the HMAC secret or PEM key is read from the environment.
//   - "file": the HMAC secret or PEM key is read from a file.
//   - "aws": the HMAC secret or PEM key is the value of a Secrets Manager secret.
//
// HMAC algorithms take the material as the raw secret; RSA and EC
// algorithms take a PEM encoded private key.
func InitSigner(ctx context.Context, cfg Config, logger *slog.Logger) (jwtx.Signer, error) {
	var sm secretsClient
	if cfg.SigningKeySource == KeySourceAWS {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		sm = secretsmanager.NewFromConfig(awsCfg)
	}
	return initSigner(ctx, cfg, sm, logger)
}

func initSigner(ctx context.Context, cfg Config, sm secretsClient, logger *slog.Logger) (jwtx.Signer, error) {
	alg := cfg.SigningAlgorithm
	family := jwtx.AlgorithmFamily(alg)

	var (
		material []byte
		kid      = cfg.SigningKeyID
		err      error
	)

	switch cfg.SigningKeySource {
	case KeySourceEnv:
		if family == jwtx.FamilyHMAC {
			material = []byte(cfg.SigningSecret)
		} else {
			material = []byte(cfg.SigningKeyPEM)
		}

	case KeySourceFile:
		material, err = os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key file: %w", err)
		}

	case KeySourceAWS:
		material, err = fetchSecret(ctx, sm, cfg.SigningKeySecretID)
		if err != nil {
			return nil, err
		}

	case KeySourceEphemeral:
		material, err = generateKey(alg)
		if err != nil {
			return nil, err
		}
		if kid == "" {
			kid = idx.New().String()
		}
		logger.Warn("using an ephemeral signing key, issued JWTs will not verify after a restart",
			"algorithm", alg,
			"kid", kid,
		)

	default:
		return nil, fmt.Errorf("%w: unknown key source %q", jwtx.ErrConfiguration, cfg.SigningKeySource)
	}

	// Files and secrets written by hand usually end with a newline.
	if family == jwtx.FamilyHMAC && cfg.SigningKeySource != KeySourceEphemeral {
		material = []byte(strings.TrimRight(string(material), "\r\n"))
	}

	sc := jwtx.SignerConfig{Algorithm: alg, KeyID: kid}
	if family == jwtx.FamilyHMAC {
		sc.Secret = material
	} else {
		sc.PrivateKeyPEM = material
	}

	signer, err := jwtx.NewSigner(sc)
	if err != nil {
		return nil, err
	}

	logger.Info("token signer ready",
		"algorithm", signer.Alg(),
		"kid", signer.KID(),
		"source", cfg.SigningKeySource,
	)
	return signer, nil
}

func fetchSecret(ctx context.Context, sm secretsClient, secretID string) ([]byte, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch signing key secret %s: %w", secretID, err)
	}

	switch {
	case out.SecretString != nil:
		return []byte(*out.SecretString), nil
	case len(out.SecretBinary) > 0:
		return out.SecretBinary, nil
	default:
		return nil, fmt.Errorf("%w: secret %s has no payload", jwtx.ErrConfiguration, secretID)
	}
}

func generateKey(alg string) ([]byte, error) {
	switch jwtx.AlgorithmFamily(alg) {
	case jwtx.FamilyHMAC:
		secret := make([]byte, jwtx.MinHMACSecretBytes(alg))
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate hmac secret: %w", err)
		}
		return secret, nil
	case jwtx.FamilyRSA:
		return cryptox.GenerateRSAKey(ephemeralRSABits)
	case jwtx.FamilyEC:
		switch alg {
		case jwtx.AlgorithmES384:
			return cryptox.GenerateECKey(elliptic.P384())
		case jwtx.AlgorithmES512:
			return cryptox.GenerateECKey(elliptic.P521())
		default:
			return cryptox.GenerateECKey(elliptic.P256())
		}
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", jwtx.ErrConfiguration, alg)
	}
}
