package protocol

import "fmt"

// Permission is a named capability a session may carry.
type Permission string

const (
	PermissionWalletInfo   Permission = "wallet_info"
	PermissionBalance      Permission = "balance"
	PermissionTransactions Permission = "transactions"
	PermissionSignMessage  Permission = "sign_message"
	PermissionAddToken     Permission = "add_token"
)

// AllPermissions lists every known permission in canonical order.
var AllPermissions = []Permission{
	PermissionWalletInfo,
	PermissionBalance,
	PermissionTransactions,
	PermissionSignMessage,
	PermissionAddToken,
}

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	switch p {
	case PermissionWalletInfo, PermissionBalance, PermissionTransactions,
		PermissionSignMessage, PermissionAddToken:
		return true
	}
	return false
}

// NormalizePermissions validates and deduplicates a requested permission
// list, preserving first-occurrence order. An empty list is valid: a DApp
// may request presence-check access only.
func NormalizePermissions(perms []Permission) ([]Permission, error) {
	seen := make(map[Permission]struct{}, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if !p.Valid() {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// HasPermission reports whether perms contains want.
func HasPermission(perms []Permission, want Permission) bool {
	for _, p := range perms {
		if p == want {
			return true
		}
	}
	return false
}
