// Package helpers provides test utility functions for the CivicFix API.
//
// # Request Building
//
// Build JSON requests with optional session authentication:
//
//	req := helpers.NewRequest(t, http.MethodPost, "/api/problems/p1/vote").
//	    WithBody(map[string]int{"vote": 1}).
//	    WithSession(token).
//	    Build()
//
// # Assertion Helpers
//
// Common test assertions:
//
//	helpers.AssertStatus(t, resp, http.StatusOK)
//	helpers.AssertProblemDetails(t, resp, 404, model.ErrCodeNotFound)
//	helpers.AssertRecordExists(t, db, "problem", problem.ID)
//
// # Pointer Helpers
//
// Create pointers to literal values:
//
//	title := helpers.StringPtr("new title")
//	votes := helpers.IntPtr(42)
package helpers
