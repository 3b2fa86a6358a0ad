package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// WriteGLB 将网格写为 GLB。先写临时文件再重命名，失败时不留下残缺文件。
func WriteGLB(mesh *Mesh, path string) (err error) {
	if mesh == nil || len(mesh.Vertices) == 0 {
		return processingError(StageExport, errors.New("mesh has no vertices"))
	}
	if len(mesh.Colors) != len(mesh.Vertices) {
		return processingError(StageExport,
			fmt.Errorf("%d vertex colors for %d vertices", len(mesh.Colors), len(mesh.Vertices)))
	}

	doc := buildDocument(mesh)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".mesh-*.glb.tmp")
	if err != nil {
		return outputError(StageExport, fmt.Errorf("create temp file: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := gltf.NewEncoder(tmp)
	enc.AsBinary = true
	if err = enc.Encode(doc); err != nil {
		return outputError(StageExport, fmt.Errorf("encode glb: %w", err))
	}
	if err = tmp.Sync(); err != nil {
		return outputError(StageExport, fmt.Errorf("sync %s: %w", tmp.Name(), err))
	}
	if err = tmp.Close(); err != nil {
		return outputError(StageExport, fmt.Errorf("close %s: %w", tmp.Name(), err))
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return outputError(StageExport, fmt.Errorf("rename to %s: %w", path, err))
	}
	if _, err = os.Stat(path); err != nil {
		return outputError(StageExport, fmt.Errorf("mesh file missing after write: %w", err))
	}
	return nil
}

func buildDocument(mesh *Mesh) *gltf.Document {
	doc := gltf.NewDocument()

	positions := make([][3]float32, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		positions[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
	}

	primitive := &gltf.Primitive{
		Attributes: map[string]int{
			gltf.POSITION: modeler.WritePosition(doc, positions),
			gltf.COLOR_0:  modeler.WriteColor(doc, mesh.Colors),
		},
	}

	// 单行或单列图像没有三角形，按点集导出
	if len(mesh.Faces) > 0 {
		indices := make([]uint32, 0, 3*len(mesh.Faces))
		for _, f := range mesh.Faces {
			indices = append(indices, f[0], f[1], f[2])
		}
		primitive.Indices = gltf.Index(modeler.WriteIndices(doc, indices))
	} else {
		primitive.Mode = gltf.PrimitivePoints
	}

	doc.Meshes = []*gltf.Mesh{{Name: "heightfield", Primitives: []*gltf.Primitive{primitive}}}
	doc.Nodes = []*gltf.Node{{Name: "relief", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}
