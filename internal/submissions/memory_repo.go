package submissions

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ submissionsRepo = (*MemoryRepo)(nil)

// MemoryRepo keeps submissions in process memory, it backs tests and local development
type MemoryRepo struct {
	mutex       sync.Mutex
	submissions map[int]Submission
	lastID      int
	// Now can be replaced in tests
	Now func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		submissions: make(map[int]Submission),
		Now:         time.Now,
	}
}

func (r *MemoryRepo) Add(_ context.Context, submission *Submission) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.lastID++
	submission.ID = r.lastID
	submission.CreatedAt = r.Now()
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id int) (*Submission, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, ok := r.submissions[id]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	return &s, nil
}

func (r *MemoryRepo) List(_ context.Context) ([]Submission, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	list := make([]Submission, 0, len(r.submissions))
	for _, s := range r.submissions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id int) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.submissions[id]; !ok {
		return false, nil
	}
	delete(r.submissions, id)
	return true, nil
}

func (r *MemoryRepo) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.submissions)
}
