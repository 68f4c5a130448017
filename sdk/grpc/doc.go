// Package grpc provee el servidor gRPC auxiliar del core y un cliente mínimo.
//
// El core no expone servicios de negocio por gRPC: el servidor publica el
// health check estándar (grpc.health.v1) para orquestadores y para la CLI.
//
// # Servidor
//
//	config := grpc.DefaultServerConfig(50051)
//	config.UnaryInterceptors = []grpc.UnaryServerInterceptor{
//	    grpc.TracingUnaryServerInterceptor(),
//	    grpc.LoggingUnaryServerInterceptor(telemetryClient),
//	}
//	server, err := grpc.NewServer(config)
//	if err != nil {
//	    return err
//	}
//	server.SetServingStatus("", true)
//	go server.Serve(ctx)
//
// # Cliente
//
//	client, err := grpc.NewClient(grpc.DefaultClientConfig("127.0.0.1:50051"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	ok, err := client.CheckHealth(ctx, "")
//
// # Trace ID
//
// TracingUnaryClientInterceptor propaga el trace_id del contexto como
// metadata "trace-id"; los interceptores de servidor lo reinstalan en el
// contexto del handler y lo agregan a los logs. SetTraceID fija uno propio y
// GetOrGenerateTraceID genera uno si falta.
package grpc
