package pdf

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"io"

	"github.com/pkg/errors"
)

// Algorithm selects the object-encryption cipher used by an
// EncryptionProfile. Revision-4+ (AES-256) handlers are out of scope.
type Algorithm int

const (
	AlgoRC4V1 Algorithm = iota
	AlgoRC4V2
	AlgoAESV2
)

func (a Algorithm) String() string {
	switch a {
	case AlgoRC4V1:
		return "RC4V1"
	case AlgoRC4V2:
		return "RC4V2"
	case AlgoAESV2:
		return "AESV2"
	default:
		return "unknown algorithm"
	}
}

// Permissions is the PDF /P value: a 32-bit two's-complement integer
// whose named bits grant access under user (non-owner) authentication.
// Bits not named here are reserved; FlagsToPerm sets them to the
// values PDF 1.6 §7.6.3.2 requires.
type Permissions int32

const (
	PermPrint       Permissions = 1 << 2 // bit 3
	PermEdit        Permissions = 1 << 3 // bit 4
	PermCopy        Permissions = 1 << 4 // bit 5
	PermEditNotes   Permissions = 1 << 5 // bit 6
	PermFillAndSign Permissions = 1 << 8 // bit 9
	PermAccessible  Permissions = 1 << 9 // bit 10
	PermDocAssembly Permissions = 1 << 10 // bit 11
	PermHighPrint   Permissions = 1 << 11 // bit 12

	// PermAll grants every permission flag this library recognizes.
	PermAll = PermPrint | PermEdit | PermCopy | PermEditNotes |
		PermFillAndSign | PermAccessible | PermDocAssembly | PermHighPrint
)

// reservedClear are the bits the PDF spec requires to be zero in /P
// (bits 1 and 2); reservedSet are the bits it requires to be one
// (bits 7, 8, and 13..32).
const (
	reservedClear = uint32(0x3)
	reservedSet   = uint32(0xFFFFF0C0)
)

// FlagsToPerm packs a set of permission flags into a full /P value,
// clearing the bits the spec reserves as zero and setting the bits it
// reserves as one. This is the form stored on EncryptionProfile and
// serialized to the encryption dictionary.
func FlagsToPerm(flags Permissions) Permissions {
	p := uint32(flags) &^ reservedClear
	p |= reservedSet
	return Permissions(p)
}

// PermToFlags extracts the named permission flags from a raw /P value,
// discarding the reserved bits. It is the inverse of FlagsToPerm.
func PermToFlags(p Permissions) Permissions {
	return p & PermAll
}

// EncryptionProfile is the immutable configuration of one encryption
// context: cipher choice, key length, and the permission bits to grant
// under user access. The standard security handler revision is
// derived from the algorithm, never set directly.
type EncryptionProfile struct {
	Algorithm Algorithm

	// KeyLength is the file encryption key length in bytes (5..16,
	// i.e. 40..128 bits in steps of 8).
	KeyLength int

	// Revision is the standard security handler revision: 2 for
	// RC4V1, 3 for RC4V2 and AESV2.
	Revision int

	// Permissions is the full, reserved-bit-complete /P value.
	Permissions Permissions
}

// NewEncryptionProfile builds an EncryptionProfile for algo, with a
// key length given in bits (40..128, a multiple of 8) and the
// permission flags to grant under user access.
func NewEncryptionProfile(algo Algorithm, keyLengthBits int, flags Permissions) (*EncryptionProfile, error) {
	if keyLengthBits < 40 || keyLengthBits > 128 || keyLengthBits%8 != 0 {
		return nil, errors.Wrapf(ErrInvalidEncryptionDict, "invalid key length %d bits", keyLengthBits)
	}
	rev := 3
	if algo == AlgoRC4V1 {
		rev = 2
	}
	return &EncryptionProfile{
		Algorithm:   algo,
		KeyLength:   keyLengthBits / 8,
		Revision:    rev,
		Permissions: FlagsToPerm(flags),
	}, nil
}

// CalculateStreamLength returns the encrypted size of a plaintext
// stream of n bytes under this profile.
func (p *EncryptionProfile) CalculateStreamLength(n int) int {
	if p.Algorithm == AlgoAESV2 {
		return 16 + ((n+1+15)/16)*16
	}
	return n
}

// CalculateStreamOffset returns the number of leading bytes of an
// encrypted stream that are IV material rather than ciphertext: 0 for
// the RC4 algorithms, 16 for AESV2.
func (p *EncryptionProfile) CalculateStreamOffset() int {
	if p.Algorithm == AlgoAESV2 {
		return 16
	}
	return 0
}

// passwdPad is the PDF 1.6 Algorithm 3.2 password padding constant.
var passwdPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// aesSalt is appended to the per-object key material for AESV2,
// before the final MD5 digest (PDF 1.6 Algorithm 3.1, note 2).
var aesSalt = []byte{0x73, 0x41, 0x6C, 0x54} // "sAlT"

// padPassword zero-extends (with passwdPad) or truncates password to
// exactly 32 bytes, per PDF 1.6 Algorithm 3.2.
func padPassword(password string) []byte {
	buf := []byte(password)
	if len(buf) > 32 {
		buf = buf[:32]
	}
	out := make([]byte, 32)
	n := copy(out, buf)
	copy(out[n:], passwdPad)
	return out
}

// EncryptionState is the mutable encryption/authentication session for
// one document: it holds the O/U values, the file encryption key once
// established, and the object reference currently in scope for
// per-object key derivation.
type EncryptionState struct {
	profile *EncryptionProfile
	docID   []byte

	o []byte
	u []byte

	key []byte

	ownerAuthenticated bool

	curRef  Reference
	haveCur bool
	curKey  []byte
}

// NewEncryptionState creates a fresh, already-authenticated
// EncryptionState for writing a new document: it derives O, the file
// encryption key, and U from the supplied passwords. If ownerPassword
// is empty, the user password is used in its place (PDF 1.6 §7.6.3.3).
func NewEncryptionState(profile *EncryptionProfile, userPassword, ownerPassword string, docID []byte) (*EncryptionState, error) {
	if ownerPassword == "" {
		ownerPassword = userPassword
	}

	st := &EncryptionState{profile: profile, docID: docID, ownerAuthenticated: true}

	paddedUser := padPassword(userPassword)
	paddedOwner := padPassword(ownerPassword)

	st.o = st.computeO(paddedUser, paddedOwner)
	st.key = st.computeFileEncryptionKey(paddedUser, st.o, profile.Permissions, docID)
	st.u = st.computeU(st.key, docID)

	return st, nil
}

// OpenEncryptionState reconstructs an EncryptionState from the O and U
// values read from an existing document's encryption dictionary.
// Authenticate must be called before the state can encrypt or decrypt.
func OpenEncryptionState(profile *EncryptionProfile, o, u, docID []byte) (*EncryptionState, error) {
	if len(o) != 32 || len(u) != 32 {
		return nil, errors.WithStack(ErrInvalidEncryptionDict)
	}
	return &EncryptionState{profile: profile, docID: docID, o: o, u: u}, nil
}

// O returns the encryption dictionary's 32-byte /O value.
func (st *EncryptionState) O() []byte { return st.o }

// U returns the encryption dictionary's 32-byte /U value.
func (st *EncryptionState) U() []byte { return st.u }

// OwnerAuthenticated reports whether the last successful Authenticate
// call matched the owner password.
func (st *EncryptionState) OwnerAuthenticated() bool { return st.ownerAuthenticated }

// Algorithm 3.3: compute the /O entry from the padded owner and user
// passwords.
func (st *EncryptionState) computeO(paddedUser, paddedOwner []byte) []byte {
	p := st.profile

	h := md5.New()
	h.Write(paddedOwner)
	sum := h.Sum(nil)
	if p.Revision >= 3 {
		for i := 0; i < 50; i++ {
			h.Reset()
			h.Write(sum[:p.KeyLength])
			sum = h.Sum(sum[:0])
		}
	}
	rc4Key := sum[:p.KeyLength]

	c, _ := rc4.NewCipher(rc4Key)
	o := make([]byte, 32)
	c.XORKeyStream(o, paddedUser)

	if p.Revision >= 3 {
		tmp := make([]byte, len(rc4Key))
		for i := byte(1); i <= 19; i++ {
			for j := range tmp {
				tmp[j] = rc4Key[j] ^ i
			}
			c, _ = rc4.NewCipher(tmp)
			c.XORKeyStream(o, o)
		}
	}
	return o
}

// Algorithm 3.2: compute the file encryption key.
func (st *EncryptionState) computeFileEncryptionKey(paddedUser, o []byte, perm Permissions, docID []byte) []byte {
	p := st.profile

	h := md5.New()
	h.Write(paddedUser)
	h.Write(o)
	h.Write([]byte{byte(perm), byte(perm >> 8), byte(perm >> 16), byte(perm >> 24)})
	h.Write(docID)
	key := h.Sum(nil)

	if p.Revision >= 3 {
		for i := 0; i < 50; i++ {
			h.Reset()
			h.Write(key[:p.KeyLength])
			key = h.Sum(key[:0])
		}
	}
	return key[:p.KeyLength]
}

// Algorithm 3.4/3.5: compute the /U entry from the file encryption
// key.
func (st *EncryptionState) computeU(key, docID []byte) []byte {
	p := st.profile
	u := make([]byte, 32)

	switch p.Revision {
	case 2:
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(u, passwdPad)
	default: // 3
		h := md5.New()
		h.Write(passwdPad)
		h.Write(docID)
		digest := h.Sum(nil)

		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(digest, digest)

		tmp := make([]byte, len(key))
		for i := byte(1); i <= 19; i++ {
			for j := range tmp {
				tmp[j] = key[j] ^ i
			}
			c, _ = rc4.NewCipher(tmp)
			c.XORKeyStream(digest, digest)
		}
		copy(u, digest[:16])
		// remaining 16 bytes are arbitrary padding; zero for
		// determinism, matching observed Adobe behavior.
	}
	return u
}

// Authenticate tries password as both the user and the owner
// password, setting the file encryption key and returning true on the
// first match. On failure the state is left unchanged.
func (st *EncryptionState) Authenticate(password string, docID []byte) bool {
	padded := padPassword(password)

	if key, ok := st.tryUser(padded, docID); ok {
		st.key = key
		st.ownerAuthenticated = false
		return true
	}

	if paddedUser, ok := st.recoverUserFromOwner(padded); ok {
		if key, ok := st.tryUser(paddedUser, docID); ok {
			st.key = key
			st.ownerAuthenticated = true
			return true
		}
	}

	return false
}

// AuthenticateOrError behaves like Authenticate but reports failure as
// an *AuthenticationError instead of a bare bool, for callers that
// want to propagate the failure with errors.Is(err, ErrInvalidPassword)
// (AuthenticationError.Is matches that sentinel).
func (st *EncryptionState) AuthenticateOrError(password string, docID []byte) error {
	if st.Authenticate(password, docID) {
		return nil
	}
	return errors.WithStack(&AuthenticationError{DocumentID: docID})
}

// tryUser computes the file encryption key assuming paddedUser is the
// padded user password, and checks it against the stored /U value.
func (st *EncryptionState) tryUser(paddedUser, docID []byte) ([]byte, bool) {
	key := st.computeFileEncryptionKey(paddedUser, st.o, st.profile.Permissions, docID)
	u := st.computeU(key, docID)
	if st.profile.Revision == 2 {
		if bytes.Equal(u, st.u) {
			return key, true
		}
	} else if bytes.Equal(u[:16], st.u[:16]) {
		return key, true
	}
	return nil, false
}

// recoverUserFromOwner reverses Algorithm 3.3's RC4 pass to recover
// the padded user password from the stored /O value, assuming padded
// is the padded owner password.
func (st *EncryptionState) recoverUserFromOwner(padded []byte) ([]byte, bool) {
	p := st.profile

	h := md5.New()
	h.Write(padded)
	sum := h.Sum(nil)
	if p.Revision >= 3 {
		for i := 0; i < 50; i++ {
			h.Reset()
			h.Write(sum[:p.KeyLength])
			sum = h.Sum(sum[:0])
		}
	}
	rc4Key := sum[:p.KeyLength]

	buf := make([]byte, 32)
	copy(buf, st.o)

	if p.Revision == 2 {
		c, _ := rc4.NewCipher(rc4Key)
		c.XORKeyStream(buf, buf)
	} else {
		tmp := make([]byte, len(rc4Key))
		for i := 19; i >= 0; i-- {
			for j := range tmp {
				tmp[j] = rc4Key[j] ^ byte(i)
			}
			c, _ := rc4.NewCipher(tmp)
			c.XORKeyStream(buf, buf)
		}
	}
	return buf, true
}

// KeyForRef derives the per-object key for ref (PDF 1.6 Algorithm
// 3.1), caching the result until the reference changes.
func (st *EncryptionState) KeyForRef(ref Reference) []byte {
	if st.haveCur && st.curRef == ref {
		return st.curKey
	}

	h := md5.New()
	h.Write(st.key)
	num := ref.Number
	gen := ref.Generation
	h.Write([]byte{byte(num), byte(num >> 8), byte(num >> 16), byte(gen), byte(gen >> 8)})
	if st.profile.Algorithm == AlgoAESV2 {
		h.Write(aesSalt)
	}

	l := len(st.key) + 5
	if l > 16 {
		l = 16
	}
	key := h.Sum(nil)[:l]

	st.curRef = ref
	st.haveCur = true
	st.curKey = key
	return key
}

// EncryptBytes encrypts buf in place (PDF 1.6 Algorithm 1) using the
// per-object key for ref, and returns the ciphertext (which may alias
// buf for RC4).
func (st *EncryptionState) EncryptBytes(ref Reference, buf []byte) ([]byte, error) {
	key := st.KeyForRef(ref)

	switch st.profile.Algorithm {
	case AlgoAESV2:
		return aesEncryptBuffer(key, buf)
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		c.XORKeyStream(buf, buf)
		return buf, nil
	}
}

// DecryptBytes decrypts buf in place (PDF 1.6 Algorithm 1) using the
// per-object key for ref.
func (st *EncryptionState) DecryptBytes(ref Reference, buf []byte) ([]byte, error) {
	key := st.KeyForRef(ref)

	switch st.profile.Algorithm {
	case AlgoAESV2:
		return aesDecryptBuffer(key, buf)
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		c.XORKeyStream(buf, buf)
		return buf, nil
	}
}

func aesEncryptBuffer(key, buf []byte) ([]byte, error) {
	n := len(buf)
	nPad := 16 - n%16
	out := make([]byte, 16+n+nPad)

	iv := out[:16]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, errors.WithStack(err)
	}

	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cbc := cipher.NewCBCEncrypter(c, iv)

	padded := out[16:]
	copy(padded, buf)
	for i := n; i < len(padded); i++ {
		padded[i] = byte(nPad)
	}
	cbc.CryptBlocks(padded, padded)
	return out, nil
}

func aesDecryptBuffer(key, buf []byte) ([]byte, error) {
	if len(buf) < 32 || len(buf)%16 != 0 {
		return nil, errors.WithStack(errCorrupted)
	}
	iv := buf[:16]
	ct := buf[16:]

	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cbc := cipher.NewCBCDecrypter(c, iv)
	cbc.CryptBlocks(ct, ct)

	nPad := int(ct[len(ct)-1])
	if nPad < 1 || nPad > 16 || nPad > len(ct) {
		return nil, errors.WithStack(errCorrupted)
	}
	return ct[:len(ct)-nPad], nil
}

// EncryptStream wraps w so that everything written to the returned
// WriteCloser is encrypted under the per-object key for ref before
// reaching w. For AESV2 the IV is written immediately.
func (st *EncryptionState) EncryptStream(ref Reference, w io.WriteCloser) (io.WriteCloser, error) {
	key := st.KeyForRef(ref)

	switch st.profile.Algorithm {
	case AlgoAESV2:
		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		iv := make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return nil, errors.WithStack(err)
		}
		if _, err := w.Write(iv); err != nil {
			return nil, err
		}
		return &encryptWriter{w: w, cbc: cipher.NewCBCEncrypter(c, iv), buf: make([]byte, 16)}, nil
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return &cipher.StreamWriter{S: c, W: w}, nil
	}
}

// DecryptStream wraps r so that the returned Reader yields the
// plaintext of data encrypted under the per-object key for ref.
func (st *EncryptionState) DecryptStream(ref Reference, r io.Reader) (io.Reader, error) {
	key := st.KeyForRef(ref)

	switch st.profile.Algorithm {
	case AlgoAESV2:
		iv := make([]byte, 16)
		if _, err := io.ReadFull(r, iv); err != nil {
			return nil, err
		}
		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return &decryptReader{cbc: cipher.NewCBCDecrypter(c, iv), r: r, buf: make([]byte, 32)}, nil
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return &cipher.StreamReader{S: c, R: r}, nil
	}
}

// AsDict serializes the encryption state and its profile into a PDF
// encryption dictionary.
func (st *EncryptionState) AsDict() Dict {
	p := st.profile
	dict := Dict{
		"Filter": Name("Standard"),
		"R":      Integer(p.Revision),
		"O":      string(st.o),
		"U":      string(st.u),
		"P":      Integer(int32(p.Permissions)),
	}
	switch p.Algorithm {
	case AlgoRC4V1:
		dict["V"] = Integer(1)
	case AlgoRC4V2:
		dict["V"] = Integer(2)
		dict["Length"] = Integer(p.KeyLength * 8)
	case AlgoAESV2:
		dict["V"] = Integer(4)
		dict["Length"] = Integer(p.KeyLength * 8)
		dict["CF"] = Dict{
			"StdCF": Dict{"CFM": Name("AESV2"), "Length": Integer(p.KeyLength)},
		}
		dict["StmF"] = Name("StdCF")
		dict["StrF"] = Name("StdCF")
		dict["EFF"] = Name("StdCF")
	}
	return dict
}

// encryptWriter buffers writes into AES block-sized chunks, CBC
// encrypting and forwarding each full block, and PKCS#7-pads the
// final partial block on Close.
type encryptWriter struct {
	w   io.WriteCloser
	cbc cipher.BlockMode
	buf []byte
	pos int
}

func (w *encryptWriter) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		k := copy(w.buf[w.pos:], p)
		n += k
		w.pos += k
		p = p[k:]

		if w.pos >= len(w.buf) {
			w.cbc.CryptBlocks(w.buf, w.buf)
			if _, err := w.w.Write(w.buf); err != nil {
				return n, err
			}
			w.pos = 0
		}
	}
	return n, nil
}

func (w *encryptWriter) Close() error {
	nPad := 16 - w.pos
	for i := w.pos; i < len(w.buf); i++ {
		w.buf[i] = byte(nPad)
	}
	w.cbc.CryptBlocks(w.buf, w.buf)
	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}
	return w.w.Close()
}

// decryptReader reads AES-CBC ciphertext one block ahead of what it
// releases, so that the final block's PKCS#7 padding can be stripped
// once end-of-stream is known.
type decryptReader struct {
	cbc      cipher.BlockMode
	r        io.Reader
	buf      []byte
	ready    []byte
	reserved []byte
}

func (r *decryptReader) Read(p []byte) (int, error) {
	if len(r.ready) == 0 {
		k := copy(r.buf, r.reserved)
		for k <= 16 && r.r != nil {
			n, err := r.r.Read(r.buf[k:])
			k += n
			if err == io.EOF {
				r.r = nil
				if k%16 != 0 {
					return 0, errCorrupted
				}
			} else if err != nil {
				return 0, err
			}
		}

		if k < 16 {
			if k > 0 {
				return 0, errCorrupted
			}
			return 0, io.EOF
		}

		l := k
		if r.r != nil {
			l-- // reserve the last byte's block in case it is padding
		}
		l -= l % 16
		r.ready = r.buf[:l]
		r.reserved = append([]byte(nil), r.buf[l:k]...)
		r.cbc.CryptBlocks(r.ready, r.ready)

		if r.r == nil {
			nPad := int(r.buf[l-1])
			if nPad < 1 || nPad > 16 || nPad > l {
				return 0, errCorrupted
			}
			r.ready = r.ready[:l-nPad]
		}
	}

	n := copy(p, r.ready)
	r.ready = r.ready[n:]
	return n, nil
}
