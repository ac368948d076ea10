package analysis

import (
	"context"
	"testing"
)

func TestNotifyIsANoOpWithoutQueue(t *testing.T) {
	// A client built without redis still serves the synchronous API;
	// notifications silently drop instead of panicking.
	c := newTestClient("http://localhost:0")
	ctx := context.Background()
	c.NotifyFormat(ctx, "snip-1", "user-1", "println(1);")
	c.NotifyLint(ctx, "snip-1", "user-1", "println(1);")
	c.NotifyTest(ctx, "snip-1", "user-1", "println(1);")
}
