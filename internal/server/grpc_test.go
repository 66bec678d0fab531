package server

import (
	"testing"

	"google.golang.org/grpc"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, Deps{})
	if len(reg.services) != 1 || reg.services[0] != "grpc.health.v1.Health" {
		t.Errorf("services = %v, want [grpc.health.v1.Health]", reg.services)
	}
}

func TestNewGRPCServer_Reflection(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		s := NewGRPCServer(Deps{Reflection: enabled})
		info := s.GetServiceInfo()
		if _, ok := info["grpc.health.v1.Health"]; !ok {
			t.Errorf("reflection=%v: health service not registered", enabled)
		}
		if _, ok := info["grpc.reflection.v1.ServerReflection"]; ok != enabled {
			t.Errorf("reflection=%v: reflection registered = %v", enabled, ok)
		}
		s.Stop()
	}
}
