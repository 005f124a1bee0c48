package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

const (
	// MinMlockLimitKB is the smallest mlock limit that still fits a key
	// enclave plus memguard's canary and coffer overhead.
	MinMlockLimitKB = 64

	// EnvInsecureMemory opts in to plain-memory key storage on systems
	// whose mlock limit is below MinMlockLimitKB.
	EnvInsecureMemory = "ARXVAL_INSECURE_MEMORY"
)

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// secretKey holds an API key either sealed in a memguard enclave or,
// when the system cannot mlock and the operator opted in, as a plain
// string.
type secretKey struct {
	enclave *memguard.Enclave
	plain   string
}

// loadAPIKey reads a key from envVar, falling back to secretPath (a
// Podman/Docker secrets mount), and seals it in locked memory.
func loadAPIKey(envVar, secretPath string) (*secretKey, error) {
	raw := os.Getenv(envVar)
	if raw == "" {
		keyBytes, err := os.ReadFile(secretPath)
		if err != nil {
			slog.Error("API key not found in environment or secrets", "env", envVar, "path", secretPath)
			return nil, fmt.Errorf("%s environment variable not set", envVar)
		}
		raw = strings.TrimSpace(string(keyBytes))
		slog.Info("Read the API key from the secrets mount", "path", secretPath)
	}
	if raw == "" {
		return nil, fmt.Errorf("%s is empty", envVar)
	}

	initMemguard()
	if mlockSufficient {
		return &secretKey{enclave: memguard.NewEnclave([]byte(raw))}, nil
	}
	if os.Getenv(EnvInsecureMemory) == "true" {
		slog.Warn("Holding API key in unlocked memory",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
		)
		return &secretKey{plain: raw}, nil
	}
	return nil, fmt.Errorf(
		"mlock limit insufficient for key enclave: have %d KB, need %d KB. "+
			"Raise the limit or set %s=true",
		currentMlockLimitKB, MinMlockLimitKB, EnvInsecureMemory,
	)
}

// reveal returns a copy of the key. Enclave-backed keys are opened for
// the duration of the copy only.
func (k *secretKey) reveal() (string, error) {
	if k.enclave == nil {
		return k.plain, nil
	}
	view, err := k.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening key enclave: %w", err)
	}
	defer view.Destroy()
	return string(view.Bytes()), nil
}

func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Debug("Secure key memory initialized", "mlock_limit_kb", currentMlockLimitKB)
		} else {
			slog.Warn("mlock limit too low for key enclave",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
			)
		}
	})
}

// checkMlockLimit queries RLIMIT_MEMLOCK. A failed query counts as
// sufficient so unusual platforms are not locked out.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// IsMlockAvailable reports whether sealed key storage is available and
// the current mlock limit in KB (-1 if unlimited).
func IsMlockAvailable() (bool, int64) {
	initMemguard()
	return mlockSufficient, currentMlockLimitKB
}

// PurgeSecrets wipes all memguard-held key material. Call on shutdown.
func PurgeSecrets() {
	memguard.Purge()
	slog.Info("Purged secure key memory")
}
