// Package mocks provides centralized mock implementations for testing.
//
// Store mocks are built on testify/mock so tests can inject failures at an
// exact call. The service mock uses function fields so handler tests only
// stub what they exercise:
//
//	svc := &mocks.MockTaskService{
//	    DeleteFn: func(ctx context.Context, id, ownerID string) error {
//	        return service.ErrNotOwned
//	    },
//	}
package mocks
