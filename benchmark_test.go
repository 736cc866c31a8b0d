package ampoule

import "testing"

type benchConfig struct {
	url string
}

func newBenchConfig(url string) *benchConfig {
	return &benchConfig{url: url}
}

type benchWorker struct {
	config *benchConfig
}

func newBenchWorker(config *benchConfig) *benchWorker {
	return &benchWorker{config: config}
}

type benchHandler struct {
	workers []*benchWorker
}

func newBenchHandler(w0, w1, w2, w3 *benchWorker) *benchHandler {
	return &benchHandler{workers: []*benchWorker{w0, w1, w2, w3}}
}

func BenchmarkManualInstantiation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		config := newBenchConfig("amqp://localhost")
		workers := [4]*benchWorker{}
		for i := 0; i < 4; i++ {
			workers[i] = newBenchWorker(config)
		}
		newBenchHandler(workers[0], workers[1], workers[2], workers[3])
	}
}

func BenchmarkContainerResolution(b *testing.B) {
	c := NewContainer()

	urlToken := NewToken("url")
	configToken := NewToken("config")
	workerToken := NewToken("worker")
	handlerToken := NewToken("handler")

	BindValue(c, urlToken, "amqp://localhost")
	BindConstructor(c, configToken, newBenchConfig, []*Token{urlToken}, Singleton)
	BindConstructor(c, workerToken, newBenchWorker, []*Token{configToken}, Transient)
	BindConstructor(c, handlerToken, newBenchHandler, []*Token{workerToken, workerToken, workerToken, workerToken}, Transient)

	for i := 0; i < b.N; i++ {
		Resolve(c, handlerToken)
	}
}

func BenchmarkSingletonHit(b *testing.B) {
	c := NewContainer()
	serviceToken := NewToken("service")
	BindConstructor(c, serviceToken, NewService, nil, Singleton)
	Resolve(c, serviceToken)

	for i := 0; i < b.N; i++ {
		Resolve(c, serviceToken)
	}
}
