// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brane-org/brane/internal/ir"
)

const sampleDescriptor = `{
  "packages": {
    "vision": {
      "versions": ["1.0.0"],
      "actions": {
        "classify": {
          "params": [{"name": "images", "type": "Data"}, {"name": "threshold", "type": "Real"}],
          "return": "IntermediateResult"
        }
      },
      "types": {
        "Config": [{"name": "batchSize", "type": "Integer"}]
      }
    }
  },
  "data": {
    "corpus": {"site-a": "/data/corpus"}
  },
  "infrastructure": {
    "site-a": {"delegate_endpoint": "site-a.example:9000", "registry_endpoint": "https://site-a.example"}
  }
}`

func writeDescriptor(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "descriptor.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDescriptorParsesPackagesDataAndInfra(t *testing.T) {
	path := writeDescriptor(t, sampleDescriptor)
	d, err := LoadDescriptor(path)
	require.NoError(t, err)
	require.Contains(t, d.Packages, "vision")
	require.Contains(t, d.Data, "corpus")
	require.Contains(t, d.Infra, "site-a")
}

func TestPackageIndexLookupTranslatesActionSignature(t *testing.T) {
	path := writeDescriptor(t, sampleDescriptor)
	d, err := LoadDescriptor(path)
	require.NoError(t, err)

	info, ok := packageIndex{d: d}.Lookup("vision")
	require.True(t, ok)
	require.Equal(t, []string{"1.0.0"}, info.Versions)
	sig, ok := info.Actions["classify"]
	require.True(t, ok)
	require.Equal(t, "IntermediateResult", sig.ReturnType.Name)
	require.Len(t, sig.Params, 2)
	require.Equal(t, "images", sig.Params[0].Name)
	require.Equal(t, "Data", sig.Params[0].Type.Name)

	props := d.Packages["vision"].Types["Config"]
	require.Len(t, props, 1)
}

func TestPackageIndexLookupUnknownPackage(t *testing.T) {
	path := writeDescriptor(t, sampleDescriptor)
	d, err := LoadDescriptor(path)
	require.NoError(t, err)

	_, ok := packageIndex{d: d}.Lookup("ghost")
	require.False(t, ok)
}

func TestDataIndexLookupTranslatesAccessMap(t *testing.T) {
	path := writeDescriptor(t, sampleDescriptor)
	d, err := LoadDescriptor(path)
	require.NoError(t, err)

	info, ok := dataIndex{d: d}.Lookup("corpus")
	require.True(t, ok)
	require.Equal(t, ir.AccessKind{Path: "/data/corpus"}, info.Access["site-a"])
}

func TestInfrastructureTranslatesEndpoints(t *testing.T) {
	path := writeDescriptor(t, sampleDescriptor)
	d, err := LoadDescriptor(path)
	require.NoError(t, err)

	infra := d.infrastructure()
	require.Equal(t, "site-a.example:9000", infra["site-a"].DelegateEndpoint)
	require.Equal(t, "https://site-a.example", infra["site-a"].RegistryEndpoint)
}

func TestParseTypeExprHandlesNestedArray(t *testing.T) {
	typ := parseTypeExpr("Array(Array(Integer))")
	require.Equal(t, "Array", typ.Name)
	require.Equal(t, "Array", typ.Elem.Name)
	require.Equal(t, "Integer", typ.Elem.Elem.Name)
}
