package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coloredMesh(t *testing.T, w, h int) *Mesh {
	t.Helper()
	depth := rampDepth(w, h)
	mesh, err := BuildHeightField(depth, DepthScale)
	require.NoError(t, err)
	mesh.Colors, err = VertexColors(depth)
	require.NoError(t, err)
	return mesh
}

func TestWriteGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.glb")
	mesh := coloredMesh(t, 4, 4)

	require.NoError(t, WriteGLB(mesh, path))

	doc, err := gltf.Open(path)
	require.NoError(t, err)
	require.Len(t, doc.Meshes, 1)
	require.Len(t, doc.Meshes[0].Primitives, 1)

	prim := doc.Meshes[0].Primitives[0]
	assert.Equal(t, 16, doc.Accessors[prim.Attributes[gltf.POSITION]].Count)
	assert.Equal(t, 16, doc.Accessors[prim.Attributes[gltf.COLOR_0]].Count)
	require.NotNil(t, prim.Indices)
	assert.Equal(t, 3*18, doc.Accessors[*prim.Indices].Count)

	// 目录中只剩最终文件
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteGLB_SingleRowExportsPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "row.glb")
	require.NoError(t, WriteGLB(coloredMesh(t, 5, 1), path))

	doc, err := gltf.Open(path)
	require.NoError(t, err)
	prim := doc.Meshes[0].Primitives[0]
	assert.Nil(t, prim.Indices)
	assert.Equal(t, gltf.PrimitivePoints, prim.Mode)
}

func TestWriteGLB_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.glb")

	err := WriteGLB(coloredMesh(t, 2, 2), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutput))
	assert.Equal(t, StageExport, StageOf(err))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteGLB_RenameFailureLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	// 目标路径是非空目录，重命名必然失败
	target := filepath.Join(dir, "occupied")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

	err := WriteGLB(coloredMesh(t, 3, 3), target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutput))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "occupied", entries[0].Name())
}

func TestWriteGLB_ColorMismatch(t *testing.T) {
	mesh := coloredMesh(t, 2, 2)
	mesh.Colors = mesh.Colors[:3]

	err := WriteGLB(mesh, filepath.Join(t.TempDir(), "out.glb"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessing))
}
