package application

import (
	"errors"
	"fmt"

	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

// ErrCollaboratorFailure is returned when the wallet engine or the datastore
// fail. The original error is wrapped as well.
var ErrCollaboratorFailure = errors.New("collaborator failure")

func collaboratorFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrCollaboratorFailure, err)
}

// engineError returns errors related to the wallet's descriptors as they
// are, while any other failure of the engine is a collaborator failure.
func engineError(err error) error {
	if errors.Is(err, domain.ErrMalformedDescriptor) ||
		errors.Is(err, domain.ErrNetworkMismatch) {
		return err
	}
	return collaboratorFailure(err)
}
