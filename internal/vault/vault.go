// Package vault はプロバイダーAPIキーの保存時暗号化を提供する。
//
// 平文の秘密情報を、マスターパスフレーズだけで復元可能な自己完結型
// エンベロープ（salt || nonce || tag || ciphertext のbase64）に変換する。
// 鍵はPBKDF2-SHA256（100,000回反復）でパスフレーズとランダムsaltから
// 導出し、AES-256-GCMで認証付き暗号化を行う。saltとnonceは呼び出し
// ごとに新規生成されるため、同一平文でもエンベロープは毎回異なる。
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength    = 64
	nonceLength   = 16
	tagLength     = 16
	keyLength     = 32
	kdfIterations = 100_000
)

var (
	// ErrNoPassphrase はマスターパスフレーズが未設定であることを示す。
	// 起動時の設定エラーであり、リクエスト単位でのリトライは無意味。
	ErrNoPassphrase = errors.New("vault: master passphrase is not configured")

	// ErrMalformedEnvelope はエンベロープの形式不正（base64不正・長さ不足）を示す。
	ErrMalformedEnvelope = errors.New("vault: malformed envelope")

	// ErrIntegrity は認証タグの検証失敗を示す。
	// 改ざん、パスフレーズ不一致、エンベロープ破損のいずれでも返る。
	// 部分的な平文は決して返さない。
	ErrIntegrity = errors.New("vault: integrity check failed")
)

// Vault はマスターパスフレーズを保持する暗号化器。
// 状態を持たないため複数goroutineから同時に使用できる。
type Vault struct {
	passphrase []byte
}

// New はVaultを生成する。パスフレーズが空の場合はErrNoPassphraseを返す。
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	return &Vault{passphrase: []byte(passphrase)}, nil
}

// Encrypt は平文をエンベロープ文字列に暗号化する。
// saltとnonceは呼び出しごとに新規生成する。
func (v *Vault) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: saltの生成に失敗しました: %w", err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: nonceの生成に失敗しました: %w", err)
	}

	aead, err := v.newAEAD(salt)
	if err != nil {
		return "", err
	}

	// SealはciphertextにタグをAppendして返すため、
	// エンベロープ形式（salt || nonce || tag || ciphertext）に合わせて分離する。
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	envelope := make([]byte, 0, saltLength+nonceLength+tagLength+len(ciphertext))
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, tag...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt はエンベロープ文字列を平文に復号する。
// 形式不正はErrMalformedEnvelope、タグ検証失敗はErrIntegrityでラップして返す。
func (v *Vault) Decrypt(envelope string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if len(combined) < saltLength+nonceLength+tagLength {
		return "", fmt.Errorf("%w: envelope too short (%d bytes)", ErrMalformedEnvelope, len(combined))
	}

	salt := combined[:saltLength]
	nonce := combined[saltLength : saltLength+nonceLength]
	tag := combined[saltLength+nonceLength : saltLength+nonceLength+tagLength]
	ciphertext := combined[saltLength+nonceLength+tagLength:]

	aead, err := v.newAEAD(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	return string(plaintext), nil
}

// newAEAD はsaltから鍵を導出してAES-256-GCMのAEADを構築する。
func (v *Vault) newAEAD(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.passphrase, salt, kdfIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: 暗号器の初期化に失敗しました: %w", err)
	}

	// エンベロープ形式は16バイトnonceを使うため、標準の12バイトから変更する。
	aead, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return nil, fmt.Errorf("vault: GCMの初期化に失敗しました: %w", err)
	}

	return aead, nil
}
