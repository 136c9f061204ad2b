package transport

import (
	"bytes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/pbkdf2"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	HandshakeMagic   = "RLK1\x00"
	NonceSize        = 32
	PBKDF2Iterations = 100000
	PBKDF2Salt       = "relook-control-key-v1"
	authContext      = "relook-control-auth-v1"
	sessionContext   = "relook-control-session-v1"
	maxFrameSize     = 64 * 1024
)

var (
	// ErrUnauthorized is returned when the peer's password does not match.
	ErrUnauthorized = errors.New("transport: unauthorized")

	handshakeOK     = []byte("OK\x00")
	handshakeDenied = []byte("NO\x00")
)

// DeriveKey uses PBKDF2 to stretch any password to 32 bytes
func DeriveKey(password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	return pbkdf2.Key(sha256.New, password, []byte(PBKDF2Salt), PBKDF2Iterations, 32)
}

// DeriveSessionKey mixes the long-term key with both nonces.
func DeriveSessionKey(key, serverNonce, clientNonce []byte) []byte {
	h := sha256.New()
	h.Write(key)
	h.Write(serverNonce)
	h.Write(clientNonce)
	h.Write([]byte(sessionContext))
	return h.Sum(nil)
}

func clientAuth(key, clientNonce []byte) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(authContext))
	_, _ = mac.Write(clientNonce)
	return mac.Sum(nil)
}

// ClientHandshake proves knowledge of key to the server.
// Sends: magic + client_nonce[32] + hmac[32]; expects "OK\0" + server_nonce[32].
func ClientHandshake(rw io.ReadWriter, key []byte) (clientNonce, serverNonce []byte, err error) {
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("handshake: missing key")
	}
	clientNonce = make([]byte, NonceSize)
	if _, err := rand.Read(clientNonce); err != nil {
		return nil, nil, fmt.Errorf("generate client nonce: %w", err)
	}

	msg := append([]byte(HandshakeMagic), clientNonce...)
	msg = append(msg, clientAuth(key, clientNonce)...)
	if _, err := rw.Write(msg); err != nil {
		return nil, nil, fmt.Errorf("write handshake: %w", err)
	}

	status := make([]byte, len(handshakeOK))
	if _, err := io.ReadFull(rw, status); err != nil {
		return nil, nil, fmt.Errorf("read handshake response: %w", err)
	}
	if bytes.Equal(status, handshakeDenied) {
		return nil, nil, ErrUnauthorized
	}
	if !bytes.Equal(status, handshakeOK) {
		return nil, nil, fmt.Errorf("invalid handshake response %q", status)
	}

	serverNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rw, serverNonce); err != nil {
		return nil, nil, fmt.Errorf("read server nonce: %w", err)
	}
	return clientNonce, serverNonce, nil
}

// ServerHandshake verifies the client's proof and answers with a server
// nonce, or with a denial followed by ErrUnauthorized.
func ServerHandshake(rw io.ReadWriter, key []byte) (clientNonce, serverNonce []byte, err error) {
	if len(key) == 0 {
		return nil, nil, fmt.Errorf("handshake: missing key")
	}
	magic := make([]byte, len(HandshakeMagic))
	if _, err := io.ReadFull(rw, magic); err != nil {
		return nil, nil, fmt.Errorf("read handshake magic: %w", err)
	}
	if string(magic) != HandshakeMagic {
		return nil, nil, fmt.Errorf("invalid handshake magic %q", magic)
	}

	clientNonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rw, clientNonce); err != nil {
		return nil, nil, fmt.Errorf("read client nonce: %w", err)
	}
	proof := make([]byte, sha256.Size)
	if _, err := io.ReadFull(rw, proof); err != nil {
		return nil, nil, fmt.Errorf("read client auth: %w", err)
	}
	if !hmac.Equal(proof, clientAuth(key, clientNonce)) {
		_, _ = rw.Write(handshakeDenied)
		return nil, nil, ErrUnauthorized
	}

	serverNonce = make([]byte, NonceSize)
	if _, err := rand.Read(serverNonce); err != nil {
		return nil, nil, fmt.Errorf("generate server nonce: %w", err)
	}
	if _, err := rw.Write(append(append([]byte(nil), handshakeOK...), serverNonce...)); err != nil {
		return nil, nil, fmt.Errorf("write handshake response: %w", err)
	}
	return clientNonce, serverNonce, nil
}

// Secure runs the handshake for password on conn and returns the sealed
// connection.
func Secure(conn net.Conn, password string, isClient bool) (net.Conn, error) {
	key, err := DeriveKey(password)
	if err != nil {
		return nil, err
	}
	var clientNonce, serverNonce []byte
	if isClient {
		clientNonce, serverNonce, err = ClientHandshake(conn, key)
	} else {
		clientNonce, serverNonce, err = ServerHandshake(conn, key)
	}
	if err != nil {
		return nil, err
	}
	return WrapConn(conn, DeriveSessionKey(key, serverNonce, clientNonce), isClient)
}

// SealedConn frames every write as length + nonce + ChaCha20-Poly1305
// ciphertext. Each direction uses its own nonce space.
type SealedConn struct {
	net.Conn
	aead cipher.AEAD

	wmu     sync.Mutex
	sendDir uint32
	sendCtr uint64

	rmu     sync.Mutex
	recvDir uint32
	recvCtr uint64
	recvBuf bytes.Buffer
}

// WrapConn seals conn with sessionKey.
func WrapConn(conn net.Conn, sessionKey []byte, isClient bool) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	c := &SealedConn{Conn: conn, aead: aead, sendDir: 2, recvDir: 1}
	if isClient {
		c.sendDir, c.recvDir = 1, 2
	}
	return c, nil
}

func (s *SealedConn) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[:4], s.sendDir)
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	ct := s.aead.Seal(nil, nonce, p, nil)
	frame := make([]byte, 4, 4+len(nonce)+len(ct))
	binary.BigEndian.PutUint32(frame, uint32(len(nonce)+len(ct)))
	frame = append(frame, nonce...)
	frame = append(frame, ct...)
	if _, err := s.Conn.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *SealedConn) Read(p []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(s.Conn, hdr[:]); err != nil {
			return 0, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length < chacha20poly1305.NonceSize || length > maxFrameSize {
			return 0, io.ErrUnexpectedEOF
		}
		frame := make([]byte, length)
		if _, err := io.ReadFull(s.Conn, frame); err != nil {
			return 0, err
		}
		nonce := frame[:chacha20poly1305.NonceSize]
		if binary.BigEndian.Uint32(nonce[:4]) != s.recvDir || binary.BigEndian.Uint64(nonce[4:]) != s.recvCtr {
			return 0, fmt.Errorf("transport: unexpected frame nonce")
		}
		pt, err := s.aead.Open(nil, nonce, frame[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		s.recvCtr++
		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}
