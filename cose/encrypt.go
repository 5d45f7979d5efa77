package cose

import (
	qcbor "github.com/qcbor-go/qcbor"
)

// Encryptor performs AEAD encryption over the Enc_structure-derived AAD.
// No concrete implementation is wired in this repository (spec.md
// section 1 Non-goals) — callers supply their own (AES-GCM, HSM-backed,
// etc.), the same abstraction boundary as Signer/MACer.
type Encryptor interface {
	Algorithm() int64
	Encrypt(plaintext, aad []byte) (ciphertext []byte, err error)
}

// Decryptor is Encryptor's inverse.
type Decryptor interface {
	Algorithm() int64
	Decrypt(ciphertext, aad []byte) (plaintext []byte, err error)
}

// EncryptMessage is a decoded COSE_Encrypt (RFC 9052 section 5.1).
type EncryptMessage struct {
	Headers           *Headers
	RawProtected      []byte
	Ciphertext        []byte
	CiphertextPresent bool
	Recipients        []RecipientEntry
}

// Encrypt builds a tagged COSE_Encrypt message with one or more
// recipients (spec.md section 4.10: "Encrypt carries ciphertext plus one
// or more recipients").
func Encrypt(h *Headers, plaintext []byte, enc Encryptor, recipients []RecipientEntry, specials map[int64]SpecialEncoder) ([]byte, error) {
	h = withAlgorithm(h, enc.Algorithm())

	msg := qcbor.NewEncoder()
	if err := msg.WriteTag(TagEncrypt); err != nil {
		return nil, err
	}
	if err := msg.OpenArray(4); err != nil {
		return nil, err
	}

	protectedBytes, err := EncodeHeaders(msg, h, specials)
	if err != nil {
		return nil, err
	}

	aad, err := buildEncStructure("Encrypt", protectedBytes, nil)
	if err != nil {
		return nil, err
	}
	ciphertext, err := enc.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}
	if err := msg.WriteByteString(ciphertext); err != nil {
		return nil, err
	}

	if err := msg.OpenArray(len(recipients)); err != nil {
		return nil, err
	}
	for _, r := range recipients {
		if err := encodeRecipient(msg, r, specials); err != nil {
			return nil, err
		}
	}
	if err := msg.CloseArray(); err != nil {
		return nil, err
	}

	if err := msg.CloseArray(); err != nil {
		return nil, err
	}
	return msg.Finish()
}

// DecodeEncrypt parses a COSE_Encrypt message, tagged or not.
func DecodeEncrypt(data []byte, specials map[int64]SpecialDecoder) (*EncryptMessage, error) {
	dec, err := qcbor.NewDecoder(data, qcbor.WithConfig(qcbor.AllowUnprocessedTagNumbers))
	if err != nil {
		return nil, err
	}
	item, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if item.Type != qcbor.TypeArray || item.Count != 4 {
		return nil, ErrMalformedMessage
	}

	h, raw, err := DecodeHeaders(dec, specials)
	if err != nil {
		return nil, err
	}

	ctItem, err := dec.Next()
	if err != nil {
		return nil, err
	}
	var ciphertext []byte
	present := ctItem.Type != qcbor.TypeNull
	if present {
		if ctItem.Type != qcbor.TypeByteString {
			return nil, ErrMalformedMessage
		}
		ciphertext = ctItem.Bytes
	}

	count, err := dec.EnterArray()
	if err != nil {
		return nil, err
	}
	recipients := make([]RecipientEntry, 0, count)
	for {
		more, err := dec.MoreInContainer()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		r, err := decodeRecipient(dec, specials)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	if err := dec.ExitArray(); err != nil {
		return nil, err
	}
	if err := dec.ExitArray(); err != nil {
		return nil, err
	}
	if !dec.Finished() {
		return nil, ErrMalformedMessage
	}

	return &EncryptMessage{
		Headers:           h,
		RawProtected:      raw,
		Ciphertext:        ciphertext,
		CiphertextPresent: present,
		Recipients:        recipients,
	}, nil
}

// Decrypt decrypts msg's ciphertext using decryptor.
func Decrypt(msg *EncryptMessage, decryptor Decryptor) ([]byte, error) {
	if !msg.CiphertextPresent {
		return nil, ErrMalformedMessage
	}
	aad, err := buildEncStructure("Encrypt", msg.RawProtected, nil)
	if err != nil {
		return nil, err
	}
	return decryptor.Decrypt(msg.Ciphertext, aad)
}

// Encrypt0Message is a decoded COSE_Encrypt0: no recipient array, the
// content-encryption key is established out of band.
type Encrypt0Message struct {
	Headers           *Headers
	RawProtected      []byte
	Ciphertext        []byte
	CiphertextPresent bool
}

// Encrypt0 builds a tagged COSE_Encrypt0 message.
func Encrypt0(h *Headers, plaintext []byte, enc Encryptor, specials map[int64]SpecialEncoder) ([]byte, error) {
	h = withAlgorithm(h, enc.Algorithm())

	msg := qcbor.NewEncoder()
	if err := msg.WriteTag(TagEncrypt0); err != nil {
		return nil, err
	}
	if err := msg.OpenArray(3); err != nil {
		return nil, err
	}

	protectedBytes, err := EncodeHeaders(msg, h, specials)
	if err != nil {
		return nil, err
	}
	aad, err := buildEncStructure("Encrypt0", protectedBytes, nil)
	if err != nil {
		return nil, err
	}
	ciphertext, err := enc.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}
	if err := msg.WriteByteString(ciphertext); err != nil {
		return nil, err
	}
	if err := msg.CloseArray(); err != nil {
		return nil, err
	}
	return msg.Finish()
}

// DecodeEncrypt0 parses a COSE_Encrypt0 message, tagged or not.
func DecodeEncrypt0(data []byte, specials map[int64]SpecialDecoder) (*Encrypt0Message, error) {
	dec, err := qcbor.NewDecoder(data, qcbor.WithConfig(qcbor.AllowUnprocessedTagNumbers))
	if err != nil {
		return nil, err
	}
	item, err := dec.Next()
	if err != nil {
		return nil, err
	}
	if item.Type != qcbor.TypeArray || item.Count != 3 {
		return nil, ErrMalformedMessage
	}

	h, raw, err := DecodeHeaders(dec, specials)
	if err != nil {
		return nil, err
	}

	ctItem, err := dec.Next()
	if err != nil {
		return nil, err
	}
	var ciphertext []byte
	present := ctItem.Type != qcbor.TypeNull
	if present {
		if ctItem.Type != qcbor.TypeByteString {
			return nil, ErrMalformedMessage
		}
		ciphertext = ctItem.Bytes
	}

	if err := dec.ExitArray(); err != nil {
		return nil, err
	}
	if !dec.Finished() {
		return nil, ErrMalformedMessage
	}

	return &Encrypt0Message{Headers: h, RawProtected: raw, Ciphertext: ciphertext, CiphertextPresent: present}, nil
}

// Decrypt0 decrypts msg's ciphertext using decryptor.
func Decrypt0(msg *Encrypt0Message, decryptor Decryptor) ([]byte, error) {
	if !msg.CiphertextPresent {
		return nil, ErrMalformedMessage
	}
	aad, err := buildEncStructure("Encrypt0", msg.RawProtected, nil)
	if err != nil {
		return nil, err
	}
	return decryptor.Decrypt(msg.Ciphertext, aad)
}

// buildEncStructure encodes the canonical Enc_structure array: {context,
// protected, external_aad}.
func buildEncStructure(context string, protected, externalAAD []byte) ([]byte, error) {
	enc := qcbor.NewEncoder()
	if err := enc.OpenArray(3); err != nil {
		return nil, err
	}
	if err := enc.WriteTextString(context); err != nil {
		return nil, err
	}
	if err := enc.WriteByteString(protected); err != nil {
		return nil, err
	}
	if err := enc.WriteByteString(externalAAD); err != nil {
		return nil, err
	}
	if err := enc.CloseArray(); err != nil {
		return nil, err
	}
	return enc.Finish()
}
