// Package scene implements the simulation context: the object model and
// step lifecycle that tie the task graph, the dispatch port, the scene
// gate and the reconciliation buffer together.
//
// A step runs asynchronously on the dispatch port between [Scene.BeginStep]
// and [Scene.AwaitStep]. The step works on a snapshot taken at BeginStep;
// live actor state stays frozen until the flush inside AwaitStep. While
// the step is in flight, API writes are redirected into the reconciliation
// buffer and API reads see buffered values first, so callers observe their
// own writes immediately. At flush, API writes win over step results.
//
// Outside a step, the application serializes access through the scene's
// [gate.Gate] (scoped helpers included); in diagnostic mode unguarded
// concurrent access is detected and reported, in production mode it is
// undefined behavior, as documented.
package scene
