// Package mocks provides gomock implementations of the service interfaces.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	pub := mocks.NewMockPublisher(ctrl)
//	pub.EXPECT().Publish(gomock.Any(), broker.TopicRequests, gomock.Any()).Return(nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=publisher_mock.go github.com/hamed0406/reachability/internal/broker Publisher

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=prober_mock.go github.com/hamed0406/reachability/internal/probe Prober

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go github.com/hamed0406/reachability/internal/notify Notifier
