package notify

import (
	"context"
	"testing"
)

func TestDisabledNotifierIsSafe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		appToken string
		userKey  string
	}{
		{name: "no credentials"},
		{name: "missing user key", appToken: "token"},
		{name: "missing app token", userKey: "user"},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			notifier := New(testCase.appToken, testCase.userKey)
			if notifier.Enabled() {
				t.Fatal("notifier enabled without full credentials")
			}
			if err := notifier.Notify(context.Background(), "title", "message"); err != nil {
				t.Fatalf("disabled notify: %v", err)
			}
		})
	}
}

func TestEnabledWithFullCredentials(t *testing.T) {
	t.Parallel()

	notifier := New("token", "user")
	if !notifier.Enabled() {
		t.Fatal("notifier disabled despite full credentials")
	}
}
