// Package domain holds the internal state records of the wallet protocol
// service. Wire-level shapes live in pkg/protocol.
package domain

import (
	"time"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// PendingRequest is an authorization request awaiting a human decision.
// Created by the server on a DApp's request call; mutated only by the
// approve/deny handlers and the expiry sweep.
type PendingRequest struct {
	ID          string
	AppName     string
	AppURL      string
	Permissions []protocol.Permission
	Description string
	IconURL     string
	CreatedAt   time.Time
	Status      protocol.RequestStatus
}

// Info renders the request for the wallet UI's approval queue.
func (r *PendingRequest) Info() protocol.PendingRequestInfo {
	return protocol.PendingRequestInfo{
		RequestID:   r.ID,
		AppName:     r.AppName,
		AppURL:      r.AppURL,
		Permissions: r.Permissions,
		Description: r.Description,
		IconURL:     r.IconURL,
		CreatedAt:   r.CreatedAt,
	}
}
