// Package etcd proporciona un cliente de configuración sobre ETCD.
//
// Estructura de claves:
// El cliente sigue el patrón de ruta `/APP/ENV/VAR_KEY` donde:
//   - `APP`: Nombre de la aplicación (echo)
//   - `ENV`: Entorno (development, testing, production)
//   - `VAR_KEY`: Clave de la variable (core/listen_addr, session/rate_limit, ...)
//
// Las claves que reciben y retornan los métodos son relativas al namespace.
//
// Ejemplo básico de uso:
//
//	client, err := etcd.New(
//		etcd.WithApp("echo"),
//		etcd.WithEnv("development"),
//		etcd.WithTimeout(5 * time.Second),
//	)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	port, _ := client.GetVarIntWithDefault(ctx, "core/grpc_port", 50051)
//	vars, _ := client.ListVars(ctx, "session/")
//
// En tests, NewWithKV acepta cualquier implementación de KV.
package etcd
