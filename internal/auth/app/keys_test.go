package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/pkg/cryptox"
	"github.com/aussiebroadwan/authcore/pkg/jwtx"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/require"
)

const testHMACSecret = "0123456789abcdef0123456789abcdef"

type fakeSecrets struct {
	out *secretsmanager.GetSecretValueOutput
	err error
	got string
}

func (f *fakeSecrets) GetSecretValue(
	_ context.Context,
	in *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	f.got = aws.ToString(in.SecretId)
	return f.out, f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestInitSignerEphemeral(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{jwtx.AlgorithmHS256, jwtx.AlgorithmRS256, jwtx.AlgorithmES384} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()

			signer, err := initSigner(context.Background(), Config{
				SigningAlgorithm: alg,
				SigningKeySource: KeySourceEphemeral,
			}, nil, discard())
			require.NoError(t, err)
			require.Equal(t, alg, signer.Alg())
			require.NotEmpty(t, signer.KID())

			_, published := signer.PublicJWK()
			require.Equal(t, jwtx.AlgorithmFamily(alg) != jwtx.FamilyHMAC, published)
		})
	}
}

func TestInitSignerEnv(t *testing.T) {
	t.Parallel()

	signer, err := initSigner(context.Background(), Config{
		SigningAlgorithm: jwtx.AlgorithmHS256,
		SigningKeySource: KeySourceEnv,
		SigningKeyID:     "primary",
		SigningSecret:    testHMACSecret,
	}, nil, discard())
	require.NoError(t, err)
	require.Equal(t, "primary", signer.KID())

	_, err = initSigner(context.Background(), Config{
		SigningAlgorithm: jwtx.AlgorithmHS256,
		SigningKeySource: KeySourceEnv,
		SigningSecret:    "short",
	}, nil, discard())
	require.ErrorIs(t, err, jwtx.ErrConfiguration)
}

func TestInitSignerFile(t *testing.T) {
	t.Parallel()

	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, pemKey, 0o600))

	signer, err := initSigner(context.Background(), Config{
		SigningAlgorithm: jwtx.AlgorithmRS256,
		SigningKeySource: KeySourceFile,
		SigningKeyFile:   path,
	}, nil, discard())
	require.NoError(t, err)
	require.Equal(t, jwtx.AlgorithmRS256, signer.Alg())

	// An RSA key cannot sign ES256.
	_, err = initSigner(context.Background(), Config{
		SigningAlgorithm: jwtx.AlgorithmES256,
		SigningKeySource: KeySourceFile,
		SigningKeyFile:   path,
	}, nil, discard())
	require.ErrorIs(t, err, jwtx.ErrConfiguration)
}

func TestInitSignerFileTrimsHMACNewline(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte(testHMACSecret+"\n"), 0o600))

	signer, err := initSigner(context.Background(), Config{
		SigningAlgorithm: jwtx.AlgorithmHS256,
		SigningKeySource: KeySourceFile,
		SigningKeyFile:   path,
	}, nil, discard())
	require.NoError(t, err)

	verifier := jwtx.NewSignerVerifier(signer, jwtx.VerifyOptions{})
	other, err := jwtx.NewSigner(jwtx.SignerConfig{Algorithm: jwtx.AlgorithmHS256, Secret: []byte(testHMACSecret)})
	require.NoError(t, err)

	tok, err := other.Sign(jwtx.NewAccessClaims("sub", "client", "", nil, nil, time.Minute, time.Now()))
	require.NoError(t, err)
	_, err = verifier.Verify(tok)
	require.NoError(t, err)
}

func TestInitSignerAWS(t *testing.T) {
	t.Parallel()

	t.Run("secret string", func(t *testing.T) {
		t.Parallel()

		sm := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{SecretString: aws.String(testHMACSecret)}}
		signer, err := initSigner(context.Background(), Config{
			SigningAlgorithm:   jwtx.AlgorithmHS256,
			SigningKeySource:   KeySourceAWS,
			SigningKeySecretID: "authcore/signing",
		}, sm, discard())
		require.NoError(t, err)
		require.Equal(t, "authcore/signing", sm.got)
		require.Equal(t, jwtx.AlgorithmHS256, signer.Alg())
	})

	t.Run("secret binary", func(t *testing.T) {
		t.Parallel()

		pemKey, err := cryptox.GenerateRSAKey(2048)
		require.NoError(t, err)

		sm := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{SecretBinary: pemKey}}
		_, err = initSigner(context.Background(), Config{
			SigningAlgorithm:   jwtx.AlgorithmRS256,
			SigningKeySource:   KeySourceAWS,
			SigningKeySecretID: "authcore/signing",
		}, sm, discard())
		require.NoError(t, err)
	})

	t.Run("empty secret", func(t *testing.T) {
		t.Parallel()

		sm := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{}}
		_, err := initSigner(context.Background(), Config{
			SigningAlgorithm:   jwtx.AlgorithmHS256,
			SigningKeySource:   KeySourceAWS,
			SigningKeySecretID: "authcore/signing",
		}, sm, discard())
		require.ErrorIs(t, err, jwtx.ErrConfiguration)
	})

	t.Run("fetch failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("access denied")
		sm := &fakeSecrets{err: boom}
		_, err := initSigner(context.Background(), Config{
			SigningAlgorithm:   jwtx.AlgorithmHS256,
			SigningKeySource:   KeySourceAWS,
			SigningKeySecretID: "authcore/signing",
		}, sm, discard())
		require.ErrorIs(t, err, boom)
	})
}
