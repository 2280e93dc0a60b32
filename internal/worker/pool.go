// Package worker выносит блокирующую работу (инференс моделей) из обработки апдейтов.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed пул остановлен и задачи больше не принимает
var ErrClosed = errors.New("worker pool is closed")

type job struct {
	ctx context.Context
	fn  func(context.Context)
}

// Pool фиксированное число горутин, разбирающих общую очередь
type Pool struct {
	jobs chan job
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewPool запускает size воркеров. size < 1 трактуется как 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		jobs: make(chan job),
		done: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case j := <-p.jobs:
			j.fn(j.ctx)
		}
	}
}

// Submit ставит fn в очередь и ждёт, пока его заберёт свободный воркер
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	case p.jobs <- job{ctx: ctx, fn: fn}:
		return nil
	}
}

// Close останавливает воркеров и дожидается завершения текущих задач
func (p *Pool) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

type result[T any] struct {
	val T
	err error
}

// Run выполняет fn на пуле и возвращает её результат.
// Паника внутри fn превращается в ошибку.
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	out := make(chan result[T], 1)
	err := p.Submit(ctx, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				out <- result[T]{val: zero, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		out <- result[T]{val: v, err: err}
	})
	if err != nil {
		var zero T
		return zero, err
	}

	res := <-out
	return res.val, res.err
}
