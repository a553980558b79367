// Package fixtures provides test data factories for the CivicFix API.
//
// # Factory Pattern
//
// Create a factory with a database connection:
//
//	f := fixtures.New(tdb.DB)
//
// # Creating Test Data
//
// Factory methods create domain entities through the real repositories:
//
//	user := f.CreateUser(t)
//	problem := f.CreateProblem(t, user)
//	f.AddComment(t, problem, user, "me too")
//
// # Customization
//
// Use option functions for customization:
//
//	problem := f.CreateProblem(t, user, fixtures.WithStatus(model.StatusSolved))
//
// # Cleanup
//
// Test data lives in the TestDB namespace and is removed when the test
// database is closed.
package fixtures
