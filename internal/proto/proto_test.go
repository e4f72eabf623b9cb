package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLast(t *testing.T) {
	_, ok := Conversation(nil).Last()
	require.False(t, ok)

	msg, ok := Conversation{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}}.Last()
	require.True(t, ok)
	require.Equal(t, "b", msg.Content)
}

func TestPreviousRemote(t *testing.T) {
	ref := &RemoteRef{ContextID: "ctx-1", TaskID: "task-1"}
	tests := map[string]struct {
		in   Conversation
		want *RemoteRef
	}{
		"empty":  {nil, nil},
		"single": {Conversation{{Role: RoleUser, Content: "hi"}}, nil},
		"remote reply before last": {Conversation{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello", Remote: ref},
			{Role: RoleAssistant, Content: "follow up"},
		}, ref},
		"local reply before last": {Conversation{
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleAssistant, Content: "follow up"},
		}, nil},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.PreviousRemote())
		})
	}
}
