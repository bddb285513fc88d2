package postgres

import (
	"time"

	"github.com/nursmen/neuralhire/internal/repository"
)

func sampleJobs() []*repository.Job {
	jobs := []*repository.Job{
		{Title: "Python Developer", Embedding: []float32{1, 0}},
		{Title: "Java Developer"},
	}
	repository.PrepareForInsert(jobs, time.Now())
	return jobs
}
