package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

// Payload sources reported to hydration and diagnostics.
const (
	sourceDecrypted = "decrypted"
	sourceFallback  = "fallback"
	sourcePlain     = "plain"
)

var errEmptyPlaintext = errors.New("decrypted payload is empty")

// codec applies the encode/decode policy for one collection.
type codec struct {
	name string

	encrypter Encrypter
	decrypter Decrypter

	allowPlaintextFallback bool
	strictPlaintext        bool
	validateData           bool
	validator              DataValidator

	report *reporter
}

func newCodec(name string, cfg config, report *reporter) *codec {
	return &codec{
		name:                   name,
		encrypter:              cfg.encrypter,
		decrypter:              cfg.decrypter,
		allowPlaintextFallback: cfg.allowPlaintextFallback,
		strictPlaintext:        cfg.strictPlaintext,
		validateData:           cfg.validateData,
		validator:              cfg.dataValidator,
		report:                 report,
	}
}

func (c *codec) encrypted() bool {
	return c.encrypter != nil
}

// encode turns the plaintext JSON of a collection into stored bytes. An
// encrypter failure is never degraded to plaintext.
func (c *codec) encode(plaintext []byte) ([]byte, error) {
	if c.encrypter == nil {
		return plaintext, nil
	}
	payload, err := c.encrypter.Encrypt(plaintext)
	if err != nil {
		return nil, newError("encode", c.name, ErrEncryptionFailed, err)
	}
	return payload, nil
}

// decode returns validated plaintext JSON for raw, and the path it came
// from. A nil plaintext means an empty collection. Empty bytes are only an
// empty collection without a decrypter; otherwise they must decrypt.
func (c *codec) decode(ctx context.Context, raw []byte) ([]byte, string, error) {
	if c.decrypter == nil {
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, sourcePlain, nil
		}
		return c.decodePlain(ctx, raw)
	}

	plaintext, decoded, err := c.decrypt(raw)
	if err == nil {
		if err := c.validate(decoded); err != nil {
			return nil, sourceDecrypted, newError("decode", c.name, ErrValidationFailed, err)
		}
		return plaintext, sourceDecrypted, nil
	}

	if !c.allowPlaintextFallback {
		return nil, sourceDecrypted, newError("decode", c.name, ErrDecryptionFailed, err)
	}

	c.report.advise(ctx, AdvisoryPlaintextFallback, "decryption failed, reading payload as plaintext", err)

	decoded, perr := parseJSON(raw)
	if perr != nil {
		return nil, sourceFallback, newError("decode", c.name, ErrFallbackParseFailed, errors.Join(err, perr))
	}
	if err := c.validate(decoded); err != nil {
		return nil, sourceFallback, newError("decode", c.name, ErrFallbackValidationFailed, err)
	}
	return raw, sourceFallback, nil
}

func (c *codec) decodePlain(ctx context.Context, raw []byte) ([]byte, string, error) {
	decoded, err := parseJSON(raw)
	if err != nil {
		if c.strictPlaintext {
			return nil, sourcePlain, newError("decode", c.name, ErrParseFailed, err)
		}
		c.report.advise(ctx, AdvisoryLegacyParseFailure, "unparsable plaintext payload read as an empty collection", err)
		return nil, sourcePlain, nil
	}
	if err := c.validate(decoded); err != nil {
		return nil, sourcePlain, newError("decode", c.name, ErrValidationFailed, err)
	}
	return raw, sourcePlain, nil
}

// decrypt runs the decrypter and parses its output; both failures count as
// a decryption failure.
func (c *codec) decrypt(raw []byte) ([]byte, any, error) {
	plaintext, err := c.decrypter.Decrypt(raw)
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(plaintext)) == 0 {
		return nil, nil, errEmptyPlaintext
	}
	decoded, err := parseJSON(plaintext)
	if err != nil {
		return nil, nil, err
	}
	return plaintext, decoded, nil
}

func (c *codec) validate(decoded any) error {
	if !c.validateData || c.validator == nil {
		return nil
	}
	return c.validator(decoded)
}

func parseJSON(data []byte) (any, error) {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
