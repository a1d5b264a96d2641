package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketdesk/backoffice/jobs"
)

func TestRunRejectsBadUsage(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	assert.ErrorIs(t, run(ctx, nil, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"users", "purge"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"superadmin", "create", "--email", "root@example.com"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"jobs", "trigger"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"jobs", "trigger", "--bogus"}, &out), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"jobs", "trigger", "mail:send"}, &out), jobs.ErrUnknownTask)
	assert.Empty(t, out.String())
}
