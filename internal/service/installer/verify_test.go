package installer

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"       //nolint:staticcheck // Maintained fork of x/crypto/openpgp.
	"github.com/ProtonMail/go-crypto/openpgp/armor" //nolint:staticcheck // Maintained fork of x/crypto/openpgp.
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/binstall/internal/domain/release"
)

// TestVerify_SingleBitFlip rejects every content that differs by one bit.
func TestVerify_SingleBitFlip(t *testing.T) {
	t.Parallel()

	data := []byte(demoScript)
	entry := release.Entry{Platform: linuxAMD64(), URL: "https://example.com/demo", SHA256: release.Digest(data)}

	require.NoError(t, Verify(data, entry))

	for offset := range data {
		for bit := range 8 {
			flipped := bytes.Clone(data)
			flipped[offset] ^= 1 << bit

			var mismatch *release.ChecksumMismatchError
			require.ErrorAs(t, Verify(flipped, entry), &mismatch)
			require.Equal(t, entry.SHA256, mismatch.Expected)
			require.Equal(t, release.Digest(flipped), mismatch.Actual)
		}
	}
}

// TestVerify_CaseInsensitiveDigest accepts an upper-case digest.
func TestVerify_CaseInsensitiveDigest(t *testing.T) {
	t.Parallel()

	data := []byte("payload")
	entry := release.Entry{SHA256: strings.ToUpper(release.Digest(data))}

	require.NoError(t, Verify(data, entry))
	require.Error(t, Verify(append(data, '\n'), entry))
}

type signer struct {
	entity    *openpgp.Entity
	publicKey string
}

func newSigner(t *testing.T) *signer {
	t.Helper()

	entity, err := openpgp.NewEntity("Demo Release", "", "release@example.com", &packet.Config{
		Algorithm: packet.PubKeyAlgoEdDSA,
	})
	require.NoError(t, err)

	var buf bytes.Buffer

	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())

	return &signer{entity: entity, publicKey: buf.String()}
}

func (s *signer) armored(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), nil))

	return buf.Bytes()
}

func (s *signer) binary(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, openpgp.DetachSign(&buf, s.entity, bytes.NewReader(data), nil))

	return buf.Bytes()
}

// signedServer serves the artifact at /artifact and signature at /artifact.sig.
func signedServer(t *testing.T, artifact, signature []byte) *artifactServer {
	t.Helper()

	return newArtifactServer(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		switch r.URL.Path {
		case "/artifact":
			_, _ = w.Write(artifact)
		case "/artifact.sig":
			_, _ = w.Write(signature)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func signedTable(t *testing.T, publicKey, baseURL string, artifact []byte) *release.Table {
	t.Helper()

	tbl, err := release.NewTable(
		release.Descriptor{Name: "demo", Version: "1.0.0", SigningKey: publicKey},
		[]release.Entry{{
			Platform:     linuxAMD64(),
			URL:          baseURL + "/artifact",
			SHA256:       release.Digest(artifact),
			SignatureURL: baseURL + "/artifact.sig",
		}},
	)
	require.NoError(t, err)

	return tbl
}

// TestRun_Signature accepts valid signatures in both encodings and rejects forged ones.
func TestRun_Signature(t *testing.T) {
	t.Parallel()

	artifact := []byte(demoScript)
	trusted := newSigner(t)
	forger := newSigner(t)

	testCases := []struct {
		name      string
		signature []byte
		wantErr   bool
	}{
		{name: "armored", signature: trusted.armored(t, artifact)},
		{name: "binary", signature: trusted.binary(t, artifact)},
		{name: "other key", signature: forger.armored(t, artifact), wantErr: true},
		{name: "other content", signature: trusted.armored(t, []byte("something else")), wantErr: true},
		{name: "garbage", signature: []byte("not a signature"), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := signedServer(t, artifact, tc.signature)
			tbl := signedTable(t, trusted.publicKey, server.URL, artifact)
			binDir := t.TempDir()

			options := append(fastOptions("linux", "amd64"), WithSkipSelfTest(true))

			result, err := New(tbl, binDir, options...).Run(context.Background())
			if !tc.wantErr {
				require.NoError(t, err)
				require.FileExists(t, result.Path)

				return
			}

			var signatureErr *release.SignatureError
			require.ErrorAs(t, err, &signatureErr)
			require.Equal(t, server.URL+"/artifact.sig", signatureErr.URL)
			require.NoFileExists(t, New(tbl, binDir).TargetPath("demo"))
		})
	}
}

// TestVerifySignature_MissingSignature fails when the signature cannot be fetched.
func TestVerifySignature_MissingSignature(t *testing.T) {
	t.Parallel()

	artifact := []byte(demoScript)
	trusted := newSigner(t)

	server := newArtifactServer(t, func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusNotFound)
	})
	tbl := signedTable(t, trusted.publicKey, server.URL, artifact)

	inst := New(tbl, t.TempDir(), fastOptions("linux", "amd64")...)
	entry, err := inst.ResolveArtifact(linuxAMD64())
	require.NoError(t, err)

	err = inst.VerifySignature(context.Background(), artifact, entry)

	var statusErr *release.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

// TestVerifySignature_Unsigned is a no-op without a signature URL.
func TestVerifySignature_Unsigned(t *testing.T) {
	t.Parallel()

	tbl := newTable(t, release.Digest(nil), map[release.PlatformKey]string{linuxAMD64(): "https://example.com/demo"})
	inst := New(tbl, t.TempDir())

	entry, err := inst.ResolveArtifact(linuxAMD64())
	require.NoError(t, err)
	require.NoError(t, inst.VerifySignature(context.Background(), nil, entry))
}
