// Package job describes sync workloads independently of where they run and
// provides local and docker runtimes to execute them.
package job

import (
	"time"
)

// Resources is the workload class of a job.
type Resources struct {
	CPU     string        `yaml:"cpu"`
	Memory  string        `yaml:"memory"`
	GPU     int           `yaml:"gpu"`
	Timeout time.Duration `yaml:"timeout"`
}

// Resource presets by workload class.
func LightResources() Resources {
	return Resources{CPU: "1", Memory: "512Mi", Timeout: 10 * time.Minute}
}

func MediumResources() Resources {
	return Resources{CPU: "2", Memory: "2Gi", Timeout: 30 * time.Minute}
}

func HeavyResources() Resources {
	return Resources{CPU: "4", Memory: "8Gi", Timeout: time.Hour}
}

// Definition describes what to run. The runtime decides where.
type Definition struct {
	Name      string            `yaml:"name"`
	Operation string            `yaml:"operation"`
	Command   []string          `yaml:"command"`
	Env       map[string]string `yaml:"env,omitempty"`
	Resources Resources         `yaml:"resources"`
	// Image overrides the runtime's default container image.
	Image    string            `yaml:"image,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// RepoSync builds a repository sync job. Repo syncs clone and hash whole
// trees, so they run with the heavy preset.
func RepoSync(url, collection string) Definition {
	return Definition{
		Name:      "repo-sync",
		Operation: "upload",
		Command:   []string{"ragsync", "upload", "repo", url, "--collection", collection},
		Resources: HeavyResources(),
		Metadata:  map[string]string{"source": url, "collection": collection},
	}
}

// FileSync builds a single-directory sync job.
func FileSync(path, collection string) Definition {
	return Definition{
		Name:      "file-sync",
		Operation: "upload",
		Command:   []string{"ragsync", "upload", "file", path, "--collection", collection},
		Resources: LightResources(),
		Metadata:  map[string]string{"source": path, "collection": collection},
	}
}

// ArchiveSync builds an archive extraction and sync job.
func ArchiveSync(path, collection string) Definition {
	return Definition{
		Name:      "archive-sync",
		Operation: "upload",
		Command:   []string{"ragsync", "upload", "archive", path, "--collection", collection},
		Resources: MediumResources(),
		Metadata:  map[string]string{"source": path, "collection": collection},
	}
}

// ObjectStoreSync builds an object-store download and sync job.
func ObjectStoreSync(url, collection string) Definition {
	return Definition{
		Name:      "s3-sync",
		Operation: "upload",
		Command:   []string{"ragsync", "upload", "s3", url, "--collection", collection},
		Resources: MediumResources(),
		Metadata:  map[string]string{"source": url, "collection": collection},
	}
}

// CollectionOp builds a collection management job.
func CollectionOp(args ...string) Definition {
	return Definition{
		Name:      "collection-op",
		Operation: "collections",
		Command:   append([]string{"ragsync", "collections"}, args...),
		Resources: LightResources(),
	}
}
