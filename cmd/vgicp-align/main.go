// Command vgicp-align registers a source PCD file to a target PCD file by
// voxelized GICP and prints the resulting rigid transform.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
	"gopkg.in/yaml.v3"

	"github.com/seqsense/vgicp"
)

type params struct {
	KCorrespondences      int     `yaml:"k_correspondences"`
	Resolution            float32 `yaml:"resolution"`
	Regularization        string  `yaml:"regularization"`
	NeighborSearch        string  `yaml:"neighbor_search"`
	MaxIterations         int     `yaml:"max_iterations"`
	RotationEpsilon       float64 `yaml:"rotation_epsilon"`
	TransformationEpsilon float64 `yaml:"transformation_epsilon"`
}

func defaultParams() params {
	return params{
		KCorrespondences:      20,
		Resolution:            1.0,
		Regularization:        "min_eig",
		NeighborSearch:        "kdtree",
		MaxIterations:         64,
		RotationEpsilon:       2e-3,
		TransformationEpsilon: 5e-4,
	}
}

func loadParams(path string) (params, error) {
	p := defaultParams()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, err
	}
	return p, nil
}

func (p params) configure(r *vgicp.Registration) error {
	r.KCorrespondences = p.KCorrespondences
	r.Resolution = p.Resolution
	r.MaxIterations = p.MaxIterations
	r.RotationEpsilon = p.RotationEpsilon
	r.TransformationEpsilon = p.TransformationEpsilon
	switch p.Regularization {
	case "none":
		r.Regularization = vgicp.RegularizationNone
	case "plane":
		r.Regularization = vgicp.RegularizationPlane
	case "min_eig":
		r.Regularization = vgicp.RegularizationMinEig
	case "normalized_min_eig":
		r.Regularization = vgicp.RegularizationNormalizedMinEig
	default:
		return fmt.Errorf("unknown regularization: %q", p.Regularization)
	}
	switch p.NeighborSearch {
	case "kdtree":
		r.NeighborSearch = vgicp.NearestNeighborKDTree
	case "bruteforce":
		r.NeighborSearch = vgicp.NearestNeighborBruteForce
	default:
		return fmt.Errorf("unknown neighbor_search: %q", p.NeighborSearch)
	}
	return nil
}

func loadCloud(path string) (pc.Vec3Slice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pp, err := pc.Unmarshal(f)
	if err != nil {
		return nil, err
	}
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, err
	}
	out := make(pc.Vec3Slice, 0, pp.Points)
	for ; it.IsValid(); it.Incr() {
		out = append(out, it.Vec3())
	}
	return out, nil
}

func main() {
	var (
		sourcePath = flag.String("source", "", "source PCD file (aligned onto the target)")
		targetPath = flag.String("target", "", "target PCD file")
		configPath = flag.String("config", "", "YAML parameter file (optional)")
	)
	flag.Parse()
	if *sourcePath == "" || *targetPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	p, err := loadParams(*configPath)
	if err != nil {
		log.Fatalf("failed to load parameters: %v", err)
	}
	reg := vgicp.NewRegistration()
	if err := p.configure(reg); err != nil {
		log.Fatal(err)
	}

	source, err := loadCloud(*sourcePath)
	if err != nil {
		log.Fatalf("failed to load source: %v", err)
	}
	target, err := loadCloud(*targetPath)
	if err != nil {
		log.Fatalf("failed to load target: %v", err)
	}
	log.Printf("source: %d points, target: %d points", len(source), len(target))

	if err := reg.SetInputTarget(target); err != nil {
		log.Fatalf("failed to set target: %v", err)
	}
	if err := reg.SetInputSource(source); err != nil {
		log.Fatalf("failed to set source: %v", err)
	}

	identity := mat.Translate(0, 0, 0)
	res, err := reg.Align(identity)
	if err != nil {
		log.Fatalf("registration failed: %v", err)
	}

	log.Printf("error: %g, iterations: %d, converged: %v, inliers: %d",
		res.Error, res.Iterations, res.Converged, res.Inliers)
	m := res.Transform
	for r := 0; r < 4; r++ {
		fmt.Printf("% 11.6f % 11.6f % 11.6f % 11.6f\n",
			m[4*0+r], m[4*1+r], m[4*2+r], m[4*3+r])
	}
}
