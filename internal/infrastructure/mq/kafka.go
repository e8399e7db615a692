package mq

import (
	"errors"
	"log"

	"possystem/internal/config"

	"github.com/IBM/sarama"
)

var ErrProducerClosed = errors.New("Kafka 生产者未初始化")

var kafkaProducer sarama.SyncProducer

// InitKafka 初始化 Kafka 生产者
// 未启用时不建连接，发件箱事件留在 PENDING 状态等待人工处理
func InitKafka(cfg *config.KafkaConfig) sarama.SyncProducer {
	if !cfg.Enabled {
		log.Println("Kafka 未启用，事件投递关闭")
		return nil
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}

	kafkaProducer = producer
	log.Println("Kafka 生产者创建成功")
	return producer
}

// SendMessage 发送消息到 Kafka
func SendMessage(topic, key, value string) error {
	if kafkaProducer == nil {
		return ErrProducerClosed
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := kafkaProducer.SendMessage(msg)
	return err
}

// CloseKafka 关闭 Kafka 生产者
func CloseKafka() {
	if kafkaProducer != nil {
		kafkaProducer.Close()
		kafkaProducer = nil
	}
}
