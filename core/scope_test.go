package core

import (
	"errors"
	"testing"
)

func TestScope_Namespace(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		want    string
		wantErr error
	}{
		{
			name:  "system scope",
			scope: SystemScope(),
			want:  "system",
		},
		{
			name:  "user scope",
			scope: UserScope("alice"),
			want:  "user-alice",
		},
		{
			name:  "tenant scope",
			scope: TenantScope("acme-corp"),
			want:  "tenant-acme-corp",
		},
		{
			name:    "user scope without owner",
			scope:   Scope{Source: SourceUser},
			wantErr: ErrMissingOwner,
		},
		{
			name:    "tenant scope without tenant",
			scope:   Scope{Source: SourceTenant},
			wantErr: ErrMissingTenant,
		},
		{
			name:    "system scope with owner",
			scope:   Scope{Source: SourceSystem, OwnerId: "alice"},
			wantErr: ErrUnexpectedIdentifier,
		},
		{
			name:    "user scope with tenant id",
			scope:   Scope{Source: SourceUser, OwnerId: "alice", TenantId: "acme"},
			wantErr: ErrUnexpectedIdentifier,
		},
		{
			name:    "owner with invalid characters",
			scope:   UserScope("alice smith"),
			wantErr: ErrBadIdentifier,
		},
		{
			name:    "owner with path separator",
			scope:   UserScope("alice/../bob"),
			wantErr: ErrBadIdentifier,
		},
		{
			name:    "zero scope",
			scope:   Scope{},
			wantErr: ErrInvalidSourceType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.scope.Namespace()

			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("Namespace() error = nil, want %v", tt.wantErr)
				}
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Namespace() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Namespace() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("Namespace() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScope_NamespacesNeverOverlap(t *testing.T) {
	// The same raw identifier in different source types must land in
	// different namespaces.
	userNS, err := UserScope("acme").Namespace()
	if err != nil {
		t.Fatalf("user Namespace() error = %v", err)
	}
	tenantNS, err := TenantScope("acme").Namespace()
	if err != nil {
		t.Fatalf("tenant Namespace() error = %v", err)
	}
	systemNS, err := SystemScope().Namespace()
	if err != nil {
		t.Fatalf("system Namespace() error = %v", err)
	}

	if userNS == tenantNS || userNS == systemNS || tenantNS == systemNS {
		t.Errorf("namespaces overlap: user=%q tenant=%q system=%q", userNS, tenantNS, systemNS)
	}
}

func TestSourceType_String(t *testing.T) {
	tests := []struct {
		source SourceType
		want   string
	}{
		{SourceSystem, "system"},
		{SourceUser, "user"},
		{SourceTenant, "tenant"},
		{SourceType(99), "sourcetype(99)"},
	}

	for _, tt := range tests {
		if got := tt.source.String(); got != tt.want {
			t.Errorf("SourceType(%d).String() = %q, want %q", int(tt.source), got, tt.want)
		}
	}
}
