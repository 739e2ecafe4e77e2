// Package mocks provides gomock mocks for the console's ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	nav := mocks.NewMockNavigationBackend(ctrl)
//	nav.EXPECT().NavigationEnvelope(gomock.Any()).Return(envelope, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_backend_mock.go github.com/target/mmk-console/internal/ports AuthBackend
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=navigation_backend_mock.go github.com/target/mmk-console/internal/ports NavigationBackend
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_persistence_mock.go github.com/target/mmk-console/internal/ports SessionPersistence
