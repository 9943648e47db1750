package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	gojwt "github.com/golang-jwt/jwt"
	gorillamux "github.com/gorilla/mux"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/nest"
	"github.com/ugokukun/controller/ccapi"
	"github.com/ugokukun/controller/config"
	"github.com/ugokukun/controller/engine"
	"github.com/ugokukun/controller/interface/http/auth"
	jwtauth "github.com/ugokukun/controller/interface/http/auth/jwt"
	"github.com/ugokukun/controller/interface/http/auth/null"
	"github.com/ugokukun/controller/interface/http/v1"
	"github.com/ugokukun/controller/interface/mqtt"
	"github.com/ugokukun/controller/keigan"
	"github.com/ugokukun/controller/state"
	"net/http"
	url2 "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type StartedInterface struct {
	Name     string
	Shutdown func() error
}

const DefaultMQTTEventDuration = 1 * time.Second

// Devices is the connected device sessions interfaces expose and drive.
type Devices struct {
	Cameras map[string]*ccapi.Session
	Motors  map[string]*keigan.Session
}

func loadInterfaceConfigurations(dir string) ([]config.InterfaceConfig, error) {
	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to ensure interface configuration directory exists: %w", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory listing for interface configurations: %w", err)
	}

	var retCfgs []config.InterfaceConfig

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read interface configuration file '%s': %w", fullPath, err)
		}

		cfg := config.InterfaceConfig{
			Name: strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
		}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse interface configuration file '%s': %w", fullPath, err)
		}

		retCfgs = append(retCfgs, cfg)
	}

	return retCfgs, nil
}

func startInterfaces(cfgs []config.InterfaceConfig, devices Devices, e *engine.Engine, tables *state.TableStore, eventbus *state.EventBus, directories Directories, l logwrap.Logger) ([]StartedInterface, error) {
	var started []StartedInterface

	for _, cfg := range cfgs {
		if shutdown, err := startInterface(cfg, devices, e, tables, eventbus, directories, l); err != nil {
			return nil, fmt.Errorf("failed to start interface '%s': %w", cfg.Name, err)
		} else {
			started = append(started, StartedInterface{
				Name:     cfg.Name,
				Shutdown: shutdown,
			})
		}
	}

	return started, nil
}

func startInterface(cfg config.InterfaceConfig, devices Devices, e *engine.Engine, tables *state.TableStore, eventbus *state.EventBus, directories Directories, l logwrap.Logger) (func() error, error) {
	wl := logwrap.New(nest.Wrap(l))
	wl.AddOptionsToLogger(logwrap.Datum("interface", cfg.Name))

	switch iCfg := cfg.Config.(type) {
	case *config.HTTPInterfaceConfig:
		wl.AddOptionsToLogger(logwrap.Source("http"))
		return startHTTPInterface(*iCfg, devices, e, tables, eventbus, directories, wl)
	case *config.MQTTInterfaceConfig:
		wl.AddOptionsToLogger(logwrap.Source("mqtt"))
		return startMQTTInterface(*iCfg, devices, e, tables, eventbus, wl)
	default:
		return nil, fmt.Errorf("unknown interface type loaded: %s", cfg.Type)
	}
}

func constructAuthenticator(cfg config.JWTAuth, cfgDir string) (auth.AuthenticationProvider, error) {
	switch cfg.Type {
	case "", "null":
		return null.Authenticator{}, nil
	case "jwt":
		keyPath := cfg.KeyFile
		if !filepath.IsAbs(keyPath) {
			keyPath = filepath.Join(cfgDir, keyPath)
		}

		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read jwt key file '%s': %w", keyPath, err)
		}

		key, err := gojwt.ParseECPrivateKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jwt key file '%s': %w", keyPath, err)
		}

		ttl := time.Duration(cfg.TokenTTL) * time.Second
		if ttl == 0 {
			ttl = 24 * time.Hour
		}

		return jwtauth.Authenticator{
			SystemIdentifier: "ugokukun-controller",
			TTL:              ttl,
			KeyIdentifier:    cfg.KeyIdentifier,
			PrivateKey:       key,
		}, nil
	default:
		return nil, fmt.Errorf("unknown authentication type: %s", cfg.Type)
	}
}

func startHTTPInterface(cfg config.HTTPInterfaceConfig, devices Devices, e *engine.Engine, tables *state.TableStore, eventbus *state.EventBus, directories Directories, l logwrap.Logger) (func() error, error) {
	ap, err := constructAuthenticator(cfg.Auth, directories.Config)
	if err != nil {
		return nil, err
	}

	cameras := map[string]v1.CameraStater{}
	for id, session := range devices.Cameras {
		cameras[id] = session
	}

	motors := map[string]v1.MotorStater{}
	for id, session := range devices.Motors {
		motors[id] = session
	}

	r := gorillamux.NewRouter()

	l.LogInfo(context.Background(), "Mounting v1 API endpoint on /api/v1.")

	v1Router := v1.ConstructRouter(cameras, motors, e, tables, l, ap, eventbus)
	r.PathPrefix("/api/v1").Handler(http.StripPrefix("/api/v1", v1Router))

	bindAddress := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: bindAddress, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			l.LogError(context.Background(), "Failed to start http server.", logwrap.Err(err))
		}
	}()

	return func() error {
		return srv.Shutdown(context.Background())
	}, nil
}

func awaitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return context.DeadlineExceeded
	}
}

func startMQTTInterface(cfg config.MQTTInterfaceConfig, devices Devices, e *engine.Engine, tables *state.TableStore, eventbus *state.EventBus, l logwrap.Logger) (func() error, error) {
	clientId, err := randomClientID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate random client id: %w", err)
	}

	l.LogInfo(context.Background(), "Constructing new MQTT client.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

	clientOptions := pahomqtt.NewClientOptions()
	clientOptions.ClientID = clientId

	if url, err := url2.Parse(cfg.Server); err != nil {
		l.LogError(context.Background(), "Failed to parse MQTT server URL.", logwrap.Err(err))
		return nil, err
	} else {
		clientOptions.Servers = []*url2.URL{url}
	}

	cameras := map[string]mqtt.CameraStater{}
	for id, session := range devices.Cameras {
		cameras[id] = session
	}

	motors := map[string]mqtt.MotorStater{}
	for id, session := range devices.Motors {
		motors[id] = session
	}

	i := mqtt.Interface{
		Cameras:               cameras,
		Motors:                motors,
		Runner:                e,
		Tables:                tables,
		EventSubscriber:       eventbus,
		Logger:                l,
		PublishStateOnConnect: cfg.PublishStateOnConnect,
	}

	lastWillTopic := prefixTopic(cfg.TopicPrefix, "controller/online")

	clientOptions.OnConnect = func(client pahomqtt.Client) {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
		defer cancel()

		l.LogInfo(context.Background(), "MQTT client successfully connected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))

		subTopic := prefixTopic(cfg.TopicPrefix, "runs/#")
		subscribeToken := client.Subscribe(subTopic, 0, func(client pahomqtt.Client, message pahomqtt.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultMQTTEventDuration)
			defer cancel()

			if err := i.IncomingMessage(ctx, stripPrefixTopic(cfg.TopicPrefix, message.Topic()), message.Payload()); err != nil {
				l.LogError(ctx, "Failed to handle incoming message.", logwrap.Datum("topic", message.Topic()), logwrap.Err(err))
			}
		})

		if err := awaitToken(ctx, subscribeToken); err != nil {
			l.LogError(ctx, "Failed to subscribe to topic in MQTT.", logwrap.Datum("topic", subTopic), logwrap.Err(err))
		}

		client.Publish(lastWillTopic, cfg.QOS, cfg.Retained, `true`)

		if err := i.Connected(context.Background(), func(ctx context.Context, topic string, payload []byte) error {
			prefixedTopic := prefixTopic(cfg.TopicPrefix, topic)

			token := client.Publish(prefixedTopic, cfg.QOS, cfg.Retained, payload)
			if err := awaitToken(ctx, token); err != nil {
				l.LogError(ctx, "Failed to publish message to MQTT.", logwrap.Datum("topic", prefixedTopic), logwrap.Err(err))
				return err
			}

			return nil
		}); err != nil {
			l.LogError(context.Background(), "Failed to execute connection handler in MQTT interface.", logwrap.Err(err))
		}
	}

	clientOptions.SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
		l.LogInfo(context.Background(), "MQTT client disconnected.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server), logwrap.Err(err))
		i.Disconnected()
	})

	clientOptions.SetWill(lastWillTopic, `false`, cfg.QOS, cfg.Retained)

	if cfg.Credentials != nil {
		clientOptions.SetUsername(cfg.Credentials.Username)
		clientOptions.SetPassword(cfg.Credentials.Password)
	}

	i.Start()

	client := pahomqtt.NewClient(clientOptions)

	go func() {
		ctx := context.Background()

		retry := time.NewTicker(1 * time.Second)
		for range retry.C {
			if token := client.Connect(); token.Wait() && token.Error() != nil {
				l.LogError(ctx, "Failed initial connection to MQTT server.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server), logwrap.Err(token.Error()))
			} else {
				l.LogInfo(ctx, "Initial MQTT connection call completed.", logwrap.Datum("clientId", clientId), logwrap.Datum("server", cfg.Server))
				retry.Stop()
				return
			}
		}
	}()

	return func() error {
		client.Disconnect(1500)
		i.Stop()
		return nil
	}, nil
}

func prefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		return fmt.Sprintf("%s/%s", topicPrefix, topic)
	}

	return topic
}

func stripPrefixTopic(topicPrefix string, topic string) string {
	if len(topicPrefix) > 0 {
		if strings.HasPrefix(topic, topicPrefix) {
			return strings.TrimPrefix(topic[len(topicPrefix):], "/")
		}
	}

	return topic
}

func randomClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
